package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validRequest() *ChangeRequestModel {
	return &ChangeRequestModel{
		ID:            "req-1",
		TrackingCode:  "SGC-20250901-AB12CD34",
		StudentID:     "stu-001",
		PeriodID:      "2025-2",
		SubjectID:     "subj-001",
		SourceGroupID: "grp-001",
		TargetGroupID: "grp-002",
		State:         StatePending,
		Version:       1,
	}
}

// TestChangeRequestValidate 申请模型的字段校验
func TestChangeRequestValidate(t *testing.T) {
	assert.NoError(t, validRequest().Validate())

	missing := validRequest()
	missing.TrackingCode = ""
	assert.EqualError(t, missing.Validate(), "tracking code is required")

	sameGroup := validRequest()
	sameGroup.TargetGroupID = sameGroup.SourceGroupID
	assert.EqualError(t, sameGroup.Validate(), "source and target group must differ")

	badState := validRequest()
	badState.State = "LIMBO"
	assert.EqualError(t, badState.Validate(), "unknown request state: LIMBO")

	badVersion := validRequest()
	badVersion.Version = 0
	assert.EqualError(t, badVersion.Validate(), "version must be at least 1")
}

// TestStateHelpers 状态辅助函数
func TestStateHelpers(t *testing.T) {
	assert.True(t, IsKnownState(StateWaitingInfo))
	assert.False(t, IsKnownState("LIMBO"))

	assert.True(t, IsTerminalState(StateApproved))
	assert.True(t, IsTerminalState(StateRejected))
	assert.False(t, IsTerminalState(StatePending))
	assert.False(t, IsTerminalState(StateInReview))
}

// TestDefinitionForState 已知状态取定义表,未知状态给通用定义
func TestDefinitionForState(t *testing.T) {
	approved := DefinitionForState(StateApproved)
	assert.Equal(t, "Approved", approved.Description)
	assert.Equal(t, "success", approved.Category)

	unknown := DefinitionForState("ARCHIVED")
	assert.Equal(t, "ARCHIVED", unknown.Name)
	assert.Equal(t, "State ARCHIVED", unknown.Description)
	assert.Equal(t, "#808080", unknown.Color)
	assert.Equal(t, "neutral", unknown.Category)
}

// TestHistoryEventValidate CREATE 事件不允许携带 from_state
func TestHistoryEventValidate(t *testing.T) {
	event := &HistoryEventModel{
		ID: "evt-1", RequestID: "req-1", ToState: StatePending, ChangeType: ChangeTypeCreate,
	}
	assert.NoError(t, event.Validate())

	event.FromState = StatePending
	assert.EqualError(t, event.Validate(), "creation event must not carry a from state")

	change := &HistoryEventModel{
		ID: "evt-2", RequestID: "req-1", FromState: StatePending, ToState: StateInReview, ChangeType: ChangeTypeStateChange,
	}
	assert.NoError(t, change.Validate())

	change.ToState = ""
	assert.EqualError(t, change.Validate(), "to state is required")
}

// TestTransitionRuleValidate 自环规则被拒绝
func TestTransitionRuleValidate(t *testing.T) {
	rule := &TransitionRuleModel{
		ID: "rule-1", FromState: StatePending, ToState: StateInReview,
	}
	assert.NoError(t, rule.Validate())

	rule.ToState = rule.FromState
	assert.Error(t, rule.Validate())
}

// TestScheduleOverlap 课表重叠判断
func TestScheduleOverlap(t *testing.T) {
	base := &GroupScheduleModel{GroupID: "grp-001", DayOfWeek: 1, StartMinutes: 8 * 60, EndMinutes: 10 * 60}

	overlapping := &GroupScheduleModel{GroupID: "grp-002", DayOfWeek: 1, StartMinutes: 9 * 60, EndMinutes: 11 * 60}
	assert.True(t, base.OverlapsWith(overlapping))
	assert.True(t, overlapping.OverlapsWith(base))

	otherDay := &GroupScheduleModel{GroupID: "grp-002", DayOfWeek: 2, StartMinutes: 9 * 60, EndMinutes: 11 * 60}
	assert.False(t, base.OverlapsWith(otherDay))

	// 首尾相接不算冲突
	adjacent := &GroupScheduleModel{GroupID: "grp-002", DayOfWeek: 1, StartMinutes: 10 * 60, EndMinutes: 12 * 60}
	assert.False(t, base.OverlapsWith(adjacent))
}

// TestScheduleValidate 课表条目字段校验
func TestScheduleValidate(t *testing.T) {
	valid := &GroupScheduleModel{GroupID: "grp-001", DayOfWeek: 5, StartMinutes: 8 * 60, EndMinutes: 10 * 60}
	assert.NoError(t, valid.Validate())

	badDay := &GroupScheduleModel{GroupID: "grp-001", DayOfWeek: 8, StartMinutes: 8 * 60, EndMinutes: 10 * 60}
	assert.Error(t, badDay.Validate())

	inverted := &GroupScheduleModel{GroupID: "grp-001", DayOfWeek: 1, StartMinutes: 10 * 60, EndMinutes: 9 * 60}
	assert.Error(t, inverted.Validate())
}

// TestGroupCapacity 名额判断
func TestGroupCapacity(t *testing.T) {
	group := &SubjectGroupModel{Capacity: 2, Enrolled: 1}
	assert.True(t, group.HasCapacity())
	group.Enrolled = 2
	assert.False(t, group.HasCapacity())
}

// TestTerminalFieldsAreOptional 终态字段在非终态下保持为空
func TestTerminalFieldsAreOptional(t *testing.T) {
	request := validRequest()
	assert.Nil(t, request.ResolvedAt)
	now := time.Now()
	request.ResolvedAt = &now
	request.ResolutionReason = "all requirements met"
	assert.NoError(t, request.Validate())
}
