package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
)

func newTestAudit(t *testing.T) AuditTrail {
	t.Helper()
	db := newTestDB(t)
	return NewAuditTrail(repository.NewHistoryEventRepository(db))
}

func TestAuditHistoryAscendingOrder(t *testing.T) {
	audit := newTestAudit(t)

	require.NoError(t, audit.RecordCreation("req-1", model.StatePending, "stu-001", "Luis Vega"))
	require.NoError(t, audit.RecordTransition("req-1", model.StatePending, model.StateInReview, "coord-01", "Ana Torres", "", nil))
	require.NoError(t, audit.RecordTransition("req-1", model.StateInReview, model.StateApproved, "coord-01", "Ana Torres", "", nil))

	events, err := audit.GetRequestHistory("req-1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, model.ChangeTypeCreate, events[0].ChangeType)
	assert.Empty(t, events[0].FromState)
	assert.Equal(t, model.StateInReview, events[1].ToState)
	assert.Equal(t, model.StateApproved, events[2].ToState)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].CreatedAt.Before(events[i-1].CreatedAt))
	}
}

func TestAuditHistoryStats(t *testing.T) {
	audit := newTestAudit(t)

	require.NoError(t, audit.RecordCreation("req-1", model.StatePending, "stu-001", "Luis Vega"))
	require.NoError(t, audit.RecordTransition("req-1", model.StatePending, model.StateInReview, "coord-01", "Ana Torres", "", nil))
	require.NoError(t, audit.RecordUpdate("req-1", model.StateInReview, "stu-001", "Luis Vega", map[string]interface{}{"reason": "updated"}))
	require.NoError(t, audit.RecordTransition("req-1", model.StateInReview, model.StateRejected, "coord-01", "Ana Torres", "out of capacity", nil))

	stats, err := audit.GetHistoryStats("req-1")
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, 2, stats.TotalStateChanges)
	assert.Equal(t, 1, stats.TotalUpdates)
	assert.Equal(t, model.ChangeTypeCreate, stats.FirstEvent.ChangeType)
	assert.Equal(t, model.StateRejected, stats.LastEvent.ToState)
	assert.ElementsMatch(t, []string{"stu-001", "coord-01"}, stats.UniqueActors)
}

func TestAuditHistoryStatsEmpty(t *testing.T) {
	audit := newTestAudit(t)

	stats, err := audit.GetHistoryStats("no-events")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEvents)
	assert.Nil(t, stats.FirstEvent)
	assert.Nil(t, stats.LastEvent)
	assert.Empty(t, stats.UniqueActors)

	has, err := audit.HasTransitions("no-events")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAuditEnrichedHistoryPhrases(t *testing.T) {
	audit := newTestAudit(t)

	require.NoError(t, audit.RecordCreation("req-1", model.StatePending, "stu-001", "Luis Vega"))
	require.NoError(t, audit.RecordTransition("req-1", model.StatePending, model.StateInReview, "coord-01", "Ana Torres", "", nil))
	require.NoError(t, audit.RecordTransition("req-1", model.StateInReview, model.StateWaitingInfo, "coord-01", "Ana Torres", "medical certificate missing", nil))
	require.NoError(t, audit.RecordTransition("req-1", model.StateWaitingInfo, model.StateApproved, "coord-01", "Ana Torres", "", nil))

	enriched, err := audit.GetEnrichedHistory("req-1")
	require.NoError(t, err)
	require.Len(t, enriched, 4)

	assert.Equal(t, "Request created in state PENDING", enriched[0].Description)
	assert.Equal(t, "Luis Vega submitted the change request", enriched[0].ReadableDescription)

	assert.Equal(t, "State changed from PENDING to IN_REVIEW", enriched[1].Description)
	assert.Equal(t, "Ana Torres started reviewing the request", enriched[1].ReadableDescription)

	// 理由拼接在句尾
	assert.Equal(t, "Ana Torres requested additional information for the request: medical certificate missing",
		enriched[2].ReadableDescription)

	assert.Equal(t, "Ana Torres approved the request", enriched[3].ReadableDescription)
}

func TestAuditEnrichedHistoryFallbacks(t *testing.T) {
	audit := newTestAudit(t)

	// 未知目标状态退回到通用措辞,空操作人归为系统
	require.NoError(t, audit.RecordTransition("req-1", model.StatePending, "ARCHIVED", "", "", "", nil))

	enriched, err := audit.GetEnrichedHistory("req-1")
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "The system moved to ARCHIVED the request", enriched[0].ReadableDescription)
}

func TestAuditRoutingEvents(t *testing.T) {
	audit := newTestAudit(t)

	require.NoError(t, audit.RecordRouting("req-1", model.ChangeTypeRoute, model.StatePending, "routing started", nil))
	require.NoError(t, audit.RecordRouting("req-1", model.ChangeTypeRouteAssigned, model.StatePending, "assigned to program prog-001",
		map[string]interface{}{"program_id": "prog-001"}))

	events, err := audit.GetRequestHistory("req-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.ChangeTypeRoute, events[0].ChangeType)
	assert.Equal(t, model.ChangeTypeRouteAssigned, events[1].ChangeType)
	assert.NotEmpty(t, events[1].Metadata)

	// 路由事件不计入状态变更
	has, err := audit.HasTransitions("req-1")
	require.NoError(t, err)
	assert.False(t, has)
}
