package service

import (
	"errors"
	"time"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"gorm.io/gorm"
)

// BasicInfo 申请基础信息
type BasicInfo struct {
	RequestID     string    `json:"request_id"`
	TrackingCode  string    `json:"tracking_code"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name,omitempty"`
	ProgramID     string    `json:"program_id"`
	PeriodID      string    `json:"period_id"`
	SubjectID     string    `json:"subject_id"`
	SourceGroupID string    `json:"source_group_id"`
	TargetGroupID string    `json:"target_group_id"`
	Priority      int       `json:"priority"`
	CreatedAt     time.Time `json:"created_at"`
}

// CurrentStateInfo 当前状态信息
type CurrentStateInfo struct {
	State       string     `json:"state"`
	Description string     `json:"description"`
	Color       string     `json:"color"`
	Version     int        `json:"version"`
	ChangedAt   *time.Time `json:"changed_at,omitempty"`
	ChangedBy   string     `json:"changed_by,omitempty"`
}

// AvailableAction 带 UI 建议的可用操作
type AvailableAction struct {
	ToState        string `json:"to_state"`
	Label          string `json:"label"`
	RequiresReason bool   `json:"requires_reason"`
	Category       string `json:"category"` // 按目标状态派生的按钮语义类别
}

// RequestMetrics 申请时间维度指标
type RequestMetrics struct {
	DaysInCurrentState int  `json:"days_in_current_state"`
	DaysSinceCreation  int  `json:"days_since_creation"`
	HasTransitions     bool `json:"has_transitions"`
	TotalStateChanges  int  `json:"total_state_changes"`
}

// RequestFlags 申请状态标志
type RequestFlags struct {
	IsResolved        bool `json:"is_resolved"`
	IsPending         bool `json:"is_pending"`
	CanBeModified     bool `json:"can_be_modified"`
	RequiresAttention bool `json:"requires_attention"`
}

// ConsolidatedView 聚合的当前状态视图
type ConsolidatedView struct {
	BasicInfo        *BasicInfo         `json:"basic_info"`
	CurrentState     *CurrentStateInfo  `json:"current_state"`
	AvailableActions []*AvailableAction `json:"available_actions"`
	Metrics          *RequestMetrics    `json:"metrics"`
	Flags            *RequestFlags      `json:"flags"`
}

// StateProjector 只读状态投影
// 从聚合、转换规则注册表和审计日志组装聚合视图,不做任何写入,
// 任意并发级别下都可安全调用,是 UI 轮询的基础
type StateProjector interface {
	GetCurrentStateInfo(requestID string, callerPermissions []string) (*ConsolidatedView, error)
}

// stateProjector 只读状态投影实现
type stateProjector struct {
	requestRepo repository.ChangeRequestRepository
	studentRepo repository.StudentRepository
	registry    TransitionRegistry
	audit       AuditTrail
}

// NewStateProjector 创建状态投影器
func NewStateProjector(requestRepo repository.ChangeRequestRepository, studentRepo repository.StudentRepository, registry TransitionRegistry, audit AuditTrail) StateProjector {
	return &stateProjector{
		requestRepo: requestRepo,
		studentRepo: studentRepo,
		registry:    registry,
		audit:       audit,
	}
}

// GetCurrentStateInfo 组装申请的聚合当前状态视图
func (p *stateProjector) GetCurrentStateInfo(requestID string, callerPermissions []string) (*ConsolidatedView, error) {
	request, err := p.requestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}

	stats, err := p.audit.GetHistoryStats(requestID)
	if err != nil {
		return nil, err
	}

	basic := &BasicInfo{
		RequestID:     request.ID,
		TrackingCode:  request.TrackingCode,
		StudentID:     request.StudentID,
		ProgramID:     request.ProgramID,
		PeriodID:      request.PeriodID,
		SubjectID:     request.SubjectID,
		SourceGroupID: request.SourceGroupID,
		TargetGroupID: request.TargetGroupID,
		Priority:      request.Priority,
		CreatedAt:     request.CreatedAt,
	}
	// 学生姓名是只读联查,学生记录缺失不影响视图其余部分
	if student, err := p.studentRepo.FindByID(request.StudentID); err == nil {
		basic.StudentName = student.Name
	}

	view := &ConsolidatedView{
		BasicInfo:        basic,
		CurrentState:     p.currentStateInfo(request),
		AvailableActions: p.availableActions(request.State, callerPermissions),
		Metrics:          p.requestMetrics(request, stats),
		Flags:            requestFlags(request),
	}
	return view, nil
}

// currentStateInfo 组装当前状态块
// 冗余的 lastStateChangedBy/At 是读优化,权威数据在审计日志
func (p *stateProjector) currentStateInfo(request *model.ChangeRequestModel) *CurrentStateInfo {
	def := model.DefinitionForState(request.State)
	return &CurrentStateInfo{
		State:       request.State,
		Description: def.Description,
		Color:       def.Color,
		Version:     request.Version,
		ChangedAt:   request.LastStateChangedAt,
		ChangedBy:   request.LastStateChangedByName,
	}
}

// availableActions 按调用方权限过滤可用转换
// 规则权限集为空表示对所有人可见,否则至少命中一个权限标签
func (p *stateProjector) availableActions(state string, callerPermissions []string) []*AvailableAction {
	transitions := p.registry.GetAvailableTransitions(state)

	callerSet := make(map[string]bool, len(callerPermissions))
	for _, tag := range callerPermissions {
		callerSet[tag] = true
	}

	actions := make([]*AvailableAction, 0, len(transitions))
	for _, transition := range transitions {
		if !permitted(transition.RequiredPermissions, callerSet) {
			continue
		}
		def := model.DefinitionForState(transition.ToState)
		label := transition.Description
		if label == "" {
			label = def.Description
		}
		actions = append(actions, &AvailableAction{
			ToState:        transition.ToState,
			Label:          label,
			RequiresReason: transition.RequiresReason,
			Category:       def.Category,
		})
	}
	return actions
}

// requestMetrics 计算时间维度指标
func (p *stateProjector) requestMetrics(request *model.ChangeRequestModel, stats *HistoryStats) *RequestMetrics {
	now := time.Now()

	// 从未变更过状态时,以创建时间为当前状态起点
	stateSince := request.CreatedAt
	if request.LastStateChangedAt != nil {
		stateSince = *request.LastStateChangedAt
	}

	return &RequestMetrics{
		DaysInCurrentState: daysBetween(stateSince, now),
		DaysSinceCreation:  daysBetween(request.CreatedAt, now),
		HasTransitions:     stats.TotalStateChanges > 0,
		TotalStateChanges:  stats.TotalStateChanges,
	}
}

// requestFlags 派生状态标志
func requestFlags(request *model.ChangeRequestModel) *RequestFlags {
	resolved := model.IsTerminalState(request.State)
	return &RequestFlags{
		IsResolved:    resolved,
		IsPending:     request.State == model.StatePending,
		CanBeModified: !resolved,
		RequiresAttention: request.State == model.StateWaitingInfo ||
			(request.State == model.StatePending && request.Priority >= model.HighPriorityThreshold),
	}
}

// permitted 判断调用方权限是否覆盖规则要求
func permitted(required []string, callerSet map[string]bool) bool {
	if len(required) == 0 {
		return true
	}
	for _, tag := range required {
		if callerSet[tag] {
			return true
		}
	}
	return false
}

// daysBetween 两个时刻之间的整天数
func daysBetween(from time.Time, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
