package model

import (
	"errors"
	"time"
)

// TransitionRuleModel 状态转换规则数据模型
// 每条记录是状态机的一条有向边,(from_state, to_state) 唯一
type TransitionRuleModel struct {
	ID                  string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	FromState           string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_transition_edge;index" json:"from_state"`
	ToState             string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_transition_edge" json:"to_state"`
	Description         string    `gorm:"type:varchar(255)" json:"description,omitempty"`
	RequiresReason      bool      `gorm:"not null;default:false" json:"requires_reason"` // 转换时是否必须提供理由
	RequiredPermissions []byte    `gorm:"type:jsonb" json:"required_permissions,omitempty"` // JSON 字符串数组,空数组表示对所有人可见
	Active              bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (TransitionRuleModel) TableName() string {
	return "transition_rules"
}

// Validate 验证转换规则模型
func (trm *TransitionRuleModel) Validate() error {
	if trm.ID == "" {
		return errors.New("rule ID is required")
	}
	if trm.FromState == "" {
		return errors.New("from state is required")
	}
	if trm.ToState == "" {
		return errors.New("to state is required")
	}
	if trm.FromState == trm.ToState {
		return errors.New("from state and to state must differ")
	}
	return nil
}
