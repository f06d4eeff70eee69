package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
)

// newTestDB 创建 SQLite 内存数据库并迁移全部模型
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.ChangeRequestModel{},
		&model.TransitionRuleModel{},
		&model.HistoryEventModel{},
		&model.StudentModel{},
		&model.AcademicProgramModel{},
		&model.AcademicPeriodModel{},
		&model.SubjectGroupModel{},
		&model.GroupScheduleModel{},
		&model.EnrollmentModel{},
	)
	require.NoError(t, err)

	return db
}

// newTestRegistry 创建带默认规则图的注册表
func newTestRegistry(t *testing.T, db *gorm.DB) TransitionRegistry {
	t.Helper()

	registry, err := NewTransitionRegistry(repository.NewTransitionRuleRepository(db))
	require.NoError(t, err)

	edges := []struct {
		from   string
		to     string
		reason bool
	}{
		{model.StatePending, model.StateInReview, false},
		{model.StateInReview, model.StateWaitingInfo, true},
		{model.StateWaitingInfo, model.StateInReview, false},
		{model.StateInReview, model.StateApproved, false},
		{model.StateInReview, model.StateRejected, true},
	}
	for _, edge := range edges {
		_, err := registry.CreateTransition(edge.from, edge.to, &CreateTransitionOptions{
			RequiresReason: edge.reason,
		})
		require.NoError(t, err)
	}
	return registry
}

// seedRequest 插入一条待处理的调课申请
func seedRequest(t *testing.T, db *gorm.DB) *model.ChangeRequestModel {
	t.Helper()

	request := &model.ChangeRequestModel{
		ID:            uuid.New().String(),
		TrackingCode:  "SGC-20250901-" + uuid.New().String()[:8],
		StudentID:     "stu-001",
		PeriodID:      "2025-2",
		ProgramID:     "prog-001",
		SubjectID:     "subj-001",
		SourceGroupID: "grp-001",
		TargetGroupID: "grp-002",
		State:         model.StatePending,
		Version:       1,
		Priority:      5,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, db.Create(request).Error)
	return request
}
