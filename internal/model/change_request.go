package model

import (
	"errors"
	"time"
)

// 调课申请状态
const (
	StatePending     = "PENDING"      // 待处理
	StateInReview    = "IN_REVIEW"    // 审核中
	StateWaitingInfo = "WAITING_INFO" // 等待补充材料
	StateApproved    = "APPROVED"     // 已批准
	StateRejected    = "REJECTED"     // 已拒绝
)

// HighPriorityThreshold 高优先级阈值,达到该值的待处理申请需要关注
const HighPriorityThreshold = 8

// ChangeRequestModel 调课申请数据模型
// 并发控制的聚合单元: Version 字段是乐观锁令牌,每次状态变更成功后加 1
type ChangeRequestModel struct {
	ID            string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TrackingCode  string `gorm:"type:varchar(32);not null;uniqueIndex" json:"tracking_code"` // 受理编号(radicado),创建时分配,永不变更
	StudentID     string `gorm:"type:varchar(64);not null;index" json:"student_id"`
	PeriodID      string `gorm:"type:varchar(64);not null;index" json:"period_id"`
	ProgramID     string `gorm:"type:varchar(64);index" json:"program_id"` // 路由分配的项目 ID
	SubjectID     string `gorm:"type:varchar(64);not null" json:"subject_id"`
	SourceGroupID string `gorm:"type:varchar(64);not null" json:"source_group_id"`
	TargetGroupID string `gorm:"type:varchar(64);not null" json:"target_group_id"`
	State         string `gorm:"type:varchar(32);not null;index" json:"state"`
	Version       int    `gorm:"type:int;not null;default:1" json:"version"` // 乐观并发版本号
	Priority      int    `gorm:"type:int;not null" json:"priority"`          // 创建时分配,之后不可变
	Reason        string `gorm:"type:text" json:"reason"`                    // 学生申请理由
	Observations  string `gorm:"type:text" json:"observations"`              // 审核备注,只追加不覆盖

	// 终态字段,进入 APPROVED/REJECTED 时写入,之后不再清除
	ResolvedAt       *time.Time `gorm:"index" json:"resolved_at,omitempty"`
	ResolutionReason string     `gorm:"type:text" json:"resolution_reason,omitempty"`

	// 最近一次状态变更的冗余字段,权威数据在 history_events 表
	LastStateChangedBy     string     `gorm:"type:varchar(64)" json:"last_state_changed_by,omitempty"`
	LastStateChangedByName string     `gorm:"type:varchar(128)" json:"last_state_changed_by_name,omitempty"`
	LastStateChangedAt     *time.Time `gorm:"" json:"last_state_changed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (ChangeRequestModel) TableName() string {
	return "change_requests"
}

// Validate 验证调课申请模型
func (crm *ChangeRequestModel) Validate() error {
	if crm.ID == "" {
		return errors.New("request ID is required")
	}
	if crm.TrackingCode == "" {
		return errors.New("tracking code is required")
	}
	if crm.StudentID == "" {
		return errors.New("student ID is required")
	}
	if crm.PeriodID == "" {
		return errors.New("period ID is required")
	}
	if crm.SourceGroupID == "" || crm.TargetGroupID == "" {
		return errors.New("source and target group IDs are required")
	}
	if crm.SourceGroupID == crm.TargetGroupID {
		return errors.New("source and target group must differ")
	}
	if !IsKnownState(crm.State) {
		return errors.New("unknown request state: " + crm.State)
	}
	if crm.Version < 1 {
		return errors.New("version must be at least 1")
	}
	return nil
}

// IsKnownState 判断是否为已知状态
func IsKnownState(state string) bool {
	switch state {
	case StatePending, StateInReview, StateWaitingInfo, StateApproved, StateRejected:
		return true
	}
	return false
}

// IsTerminalState 判断是否为终态
func IsTerminalState(state string) bool {
	return state == StateApproved || state == StateRejected
}

// StateDefinition 状态展示元数据
type StateDefinition struct {
	Name        string // 状态名
	Description string // 展示用描述
	Color       string // UI 颜色
	Category    string // 目标状态对应的按钮类别
}

// stateDefinitions 状态展示定义表
var stateDefinitions = map[string]StateDefinition{
	StatePending:     {Name: StatePending, Description: "Pending review", Color: "#FFA500", Category: "neutral"},
	StateInReview:    {Name: StateInReview, Description: "Under review", Color: "#1E90FF", Category: "primary"},
	StateWaitingInfo: {Name: StateWaitingInfo, Description: "Waiting for additional information", Color: "#9370DB", Category: "warning"},
	StateApproved:    {Name: StateApproved, Description: "Approved", Color: "#2E8B57", Category: "success"},
	StateRejected:    {Name: StateRejected, Description: "Rejected", Color: "#DC143C", Category: "danger"},
}

// DefinitionForState 返回状态的展示定义,未知状态返回通用定义
func DefinitionForState(state string) StateDefinition {
	if def, ok := stateDefinitions[state]; ok {
		return def
	}
	return StateDefinition{Name: state, Description: "State " + state, Color: "#808080", Category: "neutral"}
}
