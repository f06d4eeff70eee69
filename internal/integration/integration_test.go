package integration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
)

// newTestDB 创建 SQLite 内存数据库并迁移选课域模型
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.AcademicProgramModel{},
		&model.SubjectGroupModel{},
		&model.GroupScheduleModel{},
		&model.EnrollmentModel{},
	)
	require.NoError(t, err)

	return db
}

// seedGroup 插入一个班组
func seedGroup(t *testing.T, db *gorm.DB, id string, capacity int, enrolled int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&model.SubjectGroupModel{
		ID: id, SubjectID: "subj-001", PeriodID: "2025-2", Number: 1,
		Capacity: capacity, Enrolled: enrolled, CreatedAt: now, UpdatedAt: now,
	}).Error)
}

// seedSchedule 为班组插入一条课表
func seedSchedule(t *testing.T, db *gorm.DB, groupID string, day int, startMinutes int, endMinutes int) {
	t.Helper()
	require.NoError(t, db.Create(&model.GroupScheduleModel{
		ID: uuid.New().String(), GroupID: groupID, DayOfWeek: day,
		StartMinutes: startMinutes, EndMinutes: endMinutes, CreatedAt: time.Now(),
	}).Error)
}

// seedEnrollment 为学生插入一条有效选课
func seedEnrollment(t *testing.T, db *gorm.DB, studentID string, groupID string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&model.EnrollmentModel{
		ID: uuid.New().String(), StudentID: studentID, GroupID: groupID,
		Status: model.EnrollmentActive, CreatedAt: now, UpdatedAt: now,
	}).Error)
}

// recordedRouting 捕获路由事件,供断言使用
type recordedRouting struct {
	ChangeType string
	Detail     string
	Metadata   map[string]interface{}
}

// routingCapture RoutingRecorder 的测试替身
type routingCapture struct {
	events []recordedRouting
}

func (c *routingCapture) RecordRouting(requestID string, changeType string, state string, detail string, metadata map[string]interface{}) error {
	c.events = append(c.events, recordedRouting{ChangeType: changeType, Detail: detail, Metadata: metadata})
	return nil
}

func (c *routingCapture) typesSeen() []string {
	types := make([]string, 0, len(c.events))
	for _, event := range c.events {
		types = append(types, event.ChangeType)
	}
	return types
}
