package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/integration"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
)

// newRequestService 组装完整的编排服务栈
func newRequestService(t *testing.T, db *gorm.DB) (ChangeRequestService, AuditTrail) {
	t.Helper()

	registry := newTestRegistry(t, db)
	requestRepo := repository.NewChangeRequestRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	audit := NewAuditTrail(repository.NewHistoryEventRepository(db))

	mgr := NewStateManager(requestRepo, registry, audit, nil)
	projector := NewStateProjector(requestRepo, studentRepo, registry, audit)
	validator := integration.NewScheduleValidator(groupRepo, enrollmentRepo)
	mutator := integration.NewEnrollmentMutator(db)
	router := integration.NewRequestRouter(programRepo, nil)

	svc := NewChangeRequestService(
		requestRepo, studentRepo, groupRepo,
		mgr, projector, audit,
		validator, mutator, router,
		nil,
	)
	return svc, audit
}

// seedAcademics 准备一套最小的学籍数据:
// 学生 stu-001 在 grp-001 有有效选课,目标班组 grp-002 有名额且课表不冲突
func seedAcademics(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now()

	require.NoError(t, db.Create(&model.StudentModel{
		ID: "stu-001", Code: "2021100001", Name: "Luis Vega", Active: true,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	require.NoError(t, db.Create(&model.AcademicProgramModel{
		ID: "prog-001", Name: "Systems Engineering", Active: true, Priority: 5,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.AcademicProgramModel{
		ID: "prog-default", Name: "General Intake", Active: true, IsDefault: true, Priority: 3,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	require.NoError(t, db.Create(&model.SubjectGroupModel{
		ID: "grp-001", SubjectID: "subj-001", PeriodID: "2025-2", Number: 1,
		Capacity: 30, Enrolled: 1, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.SubjectGroupModel{
		ID: "grp-002", SubjectID: "subj-001", PeriodID: "2025-2", Number: 2,
		Capacity: 30, Enrolled: 0, CreatedAt: now, UpdatedAt: now,
	}).Error)

	require.NoError(t, db.Create(&model.GroupScheduleModel{
		ID: uuid.New().String(), GroupID: "grp-001", DayOfWeek: 1,
		StartMinutes: 8 * 60, EndMinutes: 10 * 60, CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.GroupScheduleModel{
		ID: uuid.New().String(), GroupID: "grp-002", DayOfWeek: 2,
		StartMinutes: 8 * 60, EndMinutes: 10 * 60, CreatedAt: now,
	}).Error)

	require.NoError(t, db.Create(&model.EnrollmentModel{
		ID: uuid.New().String(), StudentID: "stu-001", GroupID: "grp-001",
		Status: model.EnrollmentActive, CreatedAt: now, UpdatedAt: now,
	}).Error)
}

var trackingCodePattern = regexp.MustCompile(`^SGC-\d{8}-[A-Z0-9]{8}$`)

func newCreateInput() *CreateRequestInput {
	return &CreateRequestInput{
		StudentID:     "stu-001",
		PeriodID:      "2025-2",
		ProgramID:     "prog-001",
		SubjectID:     "subj-001",
		SourceGroupID: "grp-001",
		TargetGroupID: "grp-002",
		Reason:        "schedule conflict with work",
		ActorID:       "stu-001",
		ActorName:     "Luis Vega",
	}
}

func TestCreateRequest(t *testing.T) {
	db := newTestDB(t)
	svc, audit := newRequestService(t, db)
	seedAcademics(t, db)

	request, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)

	assert.Regexp(t, trackingCodePattern, request.TrackingCode)
	assert.Equal(t, model.StatePending, request.State)
	assert.Equal(t, 1, request.Version)
	assert.Equal(t, "prog-001", request.ProgramID)
	assert.Equal(t, 5, request.Priority)

	// CREATE 事件与路由事件都已记录
	events, err := audit.GetRequestHistory(request.ID)
	require.NoError(t, err)

	types := make(map[string]int)
	for _, event := range events {
		types[event.ChangeType]++
	}
	assert.Equal(t, 1, types[model.ChangeTypeCreate])
	assert.Equal(t, 1, types[model.ChangeTypeRoute])
	assert.Equal(t, 1, types[model.ChangeTypeRouteAssigned])
	assert.Zero(t, types[model.ChangeTypeFallback])
}

func TestCreateRequestSameGroup(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	input := newCreateInput()
	input.TargetGroupID = input.SourceGroupID
	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestCreateRequestUnknownStudent(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	input := newCreateInput()
	input.StudentID = "stu-999"
	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCreateRequestScheduleConflict(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)
	now := time.Now()

	// 学生在另一门课的班组与目标班组同一时段
	require.NoError(t, db.Create(&model.SubjectGroupModel{
		ID: "grp-other", SubjectID: "subj-002", PeriodID: "2025-2", Number: 1,
		Capacity: 30, Enrolled: 1, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.GroupScheduleModel{
		ID: uuid.New().String(), GroupID: "grp-other", DayOfWeek: 2,
		StartMinutes: 9 * 60, EndMinutes: 11 * 60, CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.EnrollmentModel{
		ID: uuid.New().String(), StudentID: "stu-001", GroupID: "grp-other",
		Status: model.EnrollmentActive, CreatedAt: now, UpdatedAt: now,
	}).Error)

	_, err := svc.Create(context.Background(), newCreateInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not feasible")
}

func TestCreateRequestRoutingFallback(t *testing.T) {
	db := newTestDB(t)
	svc, audit := newRequestService(t, db)
	seedAcademics(t, db)

	input := newCreateInput()
	input.ProgramID = "prog-missing"

	request, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	// 回退到默认项目,优先级取默认项目的权重
	assert.Equal(t, "prog-default", request.ProgramID)
	assert.Equal(t, 3, request.Priority)

	events, err := audit.GetRequestHistory(request.ID)
	require.NoError(t, err)
	var sawFallback bool
	for _, event := range events {
		if event.ChangeType == model.ChangeTypeFallback {
			sawFallback = true
		}
	}
	assert.True(t, sawFallback)
}

func TestApproveAppliesEnrollmentChange(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	request, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)

	_, err = svc.ChangeState(context.Background(), request.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)

	result, err := svc.ChangeState(context.Background(), request.ID, model.StateApproved, &ChangeStateOptions{
		ActorID: "coord-01",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, result.NewState)
	assert.Equal(t, 3, result.Version)

	// 源选课退出,目标班组新增选课
	var source model.EnrollmentModel
	require.NoError(t, db.Where("student_id = ? AND group_id = ?", "stu-001", "grp-001").First(&source).Error)
	assert.Equal(t, model.EnrollmentDropped, source.Status)

	var target model.EnrollmentModel
	require.NoError(t, db.Where("student_id = ? AND group_id = ? AND status = ?",
		"stu-001", "grp-002", model.EnrollmentActive).First(&target).Error)

	// 容量计数同步维护
	var sourceGroup, targetGroup model.SubjectGroupModel
	require.NoError(t, db.First(&sourceGroup, "id = ?", "grp-001").Error)
	require.NoError(t, db.First(&targetGroup, "id = ?", "grp-002").Error)
	assert.Equal(t, 0, sourceGroup.Enrolled)
	assert.Equal(t, 1, targetGroup.Enrolled)
}

// TestApproveReplayedIsRedundant 对已批准的申请重放批准:
// 幂等守卫先于选课副作用,返回冗余转换错误且选课不被二次改动
func TestApproveReplayedIsRedundant(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	request, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateApproved, nil, nil)
	require.NoError(t, err)

	_, err = svc.ChangeState(context.Background(), request.ID, model.StateApproved, nil, nil)
	var redundant *RedundantTransitionError
	require.ErrorAs(t, err, &redundant)

	// 第一次批准的选课结果保持不变
	var active int64
	require.NoError(t, db.Model(&model.EnrollmentModel{}).
		Where("student_id = ? AND group_id = ? AND status = ?", "stu-001", "grp-002", model.EnrollmentActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)

	var targetGroup model.SubjectGroupModel
	require.NoError(t, db.First(&targetGroup, "id = ?", "grp-002").Error)
	assert.Equal(t, 1, targetGroup.Enrolled)
}

// TestApproveStaleVersionLeavesEnrollmentUntouched 版本守卫先于选课副作用:
// 过期版本的批准失败后,学生仍留在源班组,重试仍然可行
func TestApproveStaleVersionLeavesEnrollmentUntouched(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	request, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)

	// 客户端仍然拿着版本 1,申请实际已在版本 2
	stale := 1
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateApproved, nil, &stale)
	var conflict *ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)

	stored, err := svc.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInReview, stored.State)

	var source model.EnrollmentModel
	require.NoError(t, db.Where("student_id = ? AND group_id = ?", "stu-001", "grp-001").First(&source).Error)
	assert.Equal(t, model.EnrollmentActive, source.Status)

	// 拿到最新版本后重试成功
	fresh := stored.Version
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateApproved, nil, &fresh)
	require.NoError(t, err)
}

func TestApproveFullTargetGroupFails(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	request, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)

	// 目标班组在审批期间被占满
	require.NoError(t, db.Model(&model.SubjectGroupModel{}).
		Where("id = ?", "grp-002").
		Update("enrolled", 30).Error)

	_, err = svc.ChangeState(context.Background(), request.ID, model.StateApproved, nil, nil)
	require.Error(t, err)

	// 申请停留在原状态,选课未被改动
	stored, err := svc.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInReview, stored.State)

	var source model.EnrollmentModel
	require.NoError(t, db.Where("student_id = ? AND group_id = ?", "stu-001", "grp-001").First(&source).Error)
	assert.Equal(t, model.EnrollmentActive, source.Status)
}

func TestServiceListFilter(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	first, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)

	_, err = svc.ChangeState(context.Background(), first.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)

	state := model.StatePending
	pending, err := svc.List(&repository.ChangeRequestFilter{State: &state})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	student := "stu-001"
	all, err := svc.List(&repository.ChangeRequestFilter{StudentID: &student})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestServiceReadFacades(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newRequestService(t, db)
	seedAcademics(t, db)

	request, err := svc.Create(context.Background(), newCreateInput())
	require.NoError(t, err)
	_, err = svc.ChangeState(context.Background(), request.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)

	view, err := svc.GetCurrentStateInfo(request.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StateInReview, view.CurrentState.State)

	actions, err := svc.GetAvailableActions(request.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 3)

	has, err := svc.HasStateTransitions(request.ID)
	require.NoError(t, err)
	assert.True(t, has)

	stats, err := svc.GetHistoryStats(request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStateChanges)

	enriched, err := svc.GetEnrichedHistory(request.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, enriched)

	schedule, err := svc.GetGroupSchedule("grp-002")
	require.NoError(t, err)
	assert.Len(t, schedule, 1)
}

func TestTrackingCodeFormat(t *testing.T) {
	code := newTrackingCode()
	assert.Regexp(t, trackingCodePattern, code)
	assert.Contains(t, code, time.Now().Format("20060102"))
}
