package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
)

// newProjectorStack 组装投影器与配套的状态引擎
func newProjectorStack(t *testing.T, db *gorm.DB) (StateProjector, StateManager, TransitionRegistry) {
	t.Helper()

	registry := newTestRegistry(t, db)
	audit := NewAuditTrail(repository.NewHistoryEventRepository(db))
	requestRepo := repository.NewChangeRequestRepository(db)
	mgr := NewStateManager(requestRepo, registry, audit, nil)
	projector := NewStateProjector(requestRepo, repository.NewStudentRepository(db), registry, audit)
	return projector, mgr, registry
}

func TestProjectorConsolidatedView(t *testing.T) {
	db := newTestDB(t)
	projector, mgr, _ := newProjectorStack(t, db)
	request := seedRequest(t, db)

	require.NoError(t, db.Create(&model.StudentModel{
		ID:        "stu-001",
		Code:      "2021100001",
		Name:      "Luis Vega",
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}).Error)

	_, err := mgr.ChangeState(context.Background(), request.ID, model.StateInReview, &ChangeStateOptions{
		ActorID:   "coord-01",
		ActorName: "Ana Torres",
	}, nil)
	require.NoError(t, err)

	view, err := projector.GetCurrentStateInfo(request.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, request.ID, view.BasicInfo.RequestID)
	assert.Equal(t, request.TrackingCode, view.BasicInfo.TrackingCode)
	assert.Equal(t, "Luis Vega", view.BasicInfo.StudentName)

	assert.Equal(t, model.StateInReview, view.CurrentState.State)
	assert.Equal(t, "Under review", view.CurrentState.Description)
	assert.Equal(t, 2, view.CurrentState.Version)
	assert.Equal(t, "Ana Torres", view.CurrentState.ChangedBy)

	assert.True(t, view.Metrics.HasTransitions)
	assert.Equal(t, 1, view.Metrics.TotalStateChanges)
	assert.Equal(t, 0, view.Metrics.DaysInCurrentState)

	assert.False(t, view.Flags.IsResolved)
	assert.True(t, view.Flags.CanBeModified)
}

func TestProjectorMissingStudentIsBestEffort(t *testing.T) {
	db := newTestDB(t)
	projector, _, _ := newProjectorStack(t, db)
	request := seedRequest(t, db)

	// 学生记录缺失不影响视图其余部分
	view, err := projector.GetCurrentStateInfo(request.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, view.BasicInfo.StudentName)
	assert.Equal(t, model.StatePending, view.CurrentState.State)
}

func TestProjectorNotFound(t *testing.T) {
	db := newTestDB(t)
	projector, _, _ := newProjectorStack(t, db)

	_, err := projector.GetCurrentStateInfo("missing-id", nil)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestProjectorPermissionFiltering(t *testing.T) {
	db := newTestDB(t)
	projector, _, registry := newProjectorStack(t, db)
	request := seedRequest(t, db)

	// PENDING 的另一条出边要求 coordinator 权限
	_, err := registry.CreateTransition(model.StatePending, model.StateRejected, &CreateTransitionOptions{
		RequiresReason:      true,
		RequiredPermissions: []string{"coordinator"},
	})
	require.NoError(t, err)

	// 无权限: 只看到开放的边
	view, err := projector.GetCurrentStateInfo(request.ID, nil)
	require.NoError(t, err)
	require.Len(t, view.AvailableActions, 1)
	assert.Equal(t, model.StateInReview, view.AvailableActions[0].ToState)

	// 带 coordinator 标签: 两条都可见
	view, err = projector.GetCurrentStateInfo(request.ID, []string{"coordinator"})
	require.NoError(t, err)
	assert.Len(t, view.AvailableActions, 2)

	// 无关标签不放行
	view, err = projector.GetCurrentStateInfo(request.ID, []string{"student"})
	require.NoError(t, err)
	assert.Len(t, view.AvailableActions, 1)
}

func TestProjectorActionCategories(t *testing.T) {
	db := newTestDB(t)
	projector, mgr, _ := newProjectorStack(t, db)
	request := seedRequest(t, db)

	_, err := mgr.ChangeState(context.Background(), request.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)

	view, err := projector.GetCurrentStateInfo(request.ID, nil)
	require.NoError(t, err)
	require.Len(t, view.AvailableActions, 3)

	categories := make(map[string]string)
	for _, action := range view.AvailableActions {
		categories[action.ToState] = action.Category
	}
	assert.Equal(t, "success", categories[model.StateApproved])
	assert.Equal(t, "danger", categories[model.StateRejected])
	assert.Equal(t, "warning", categories[model.StateWaitingInfo])
}

func TestProjectorFlags(t *testing.T) {
	db := newTestDB(t)
	projector, mgr, _ := newProjectorStack(t, db)

	// 高优先级待处理申请需要关注
	urgent := seedRequest(t, db)
	require.NoError(t, db.Model(&model.ChangeRequestModel{}).
		Where("id = ?", urgent.ID).
		Update("priority", model.HighPriorityThreshold).Error)

	view, err := projector.GetCurrentStateInfo(urgent.ID, nil)
	require.NoError(t, err)
	assert.True(t, view.Flags.IsPending)
	assert.True(t, view.Flags.RequiresAttention)

	// 终态申请: 已解决,不可修改,无需关注
	resolved := seedRequest(t, db)
	_, err = mgr.ChangeState(context.Background(), resolved.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)
	_, err = mgr.ChangeState(context.Background(), resolved.ID, model.StateApproved, nil, nil)
	require.NoError(t, err)

	view, err = projector.GetCurrentStateInfo(resolved.ID, nil)
	require.NoError(t, err)
	assert.True(t, view.Flags.IsResolved)
	assert.False(t, view.Flags.CanBeModified)
	assert.False(t, view.Flags.RequiresAttention)

	// 等待补充材料的申请需要关注
	waiting := seedRequest(t, db)
	_, err = mgr.ChangeState(context.Background(), waiting.ID, model.StateInReview, nil, nil)
	require.NoError(t, err)
	_, err = mgr.ChangeState(context.Background(), waiting.ID, model.StateWaitingInfo, &ChangeStateOptions{Reason: "need certificate"}, nil)
	require.NoError(t, err)

	view, err = projector.GetCurrentStateInfo(waiting.ID, nil)
	require.NoError(t, err)
	assert.True(t, view.Flags.RequiresAttention)
	assert.False(t, view.Flags.IsResolved)
}
