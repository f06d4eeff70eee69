package model

import (
	"errors"
	"time"
)

// 生命周期事件类型
const (
	ChangeTypeCreate      = "CREATE"       // 申请创建
	ChangeTypeStateChange = "STATE_CHANGE" // 状态变更
	ChangeTypeUpdate      = "UPDATE"       // 非状态字段修改
	// 路由器在创建时写入的并行事件
	ChangeTypeRoute         = "ROUTE"
	ChangeTypeFallback      = "FALLBACK"
	ChangeTypeRouteAssigned = "ROUTE_ASSIGNED"
)

// HistoryEventModel 生命周期事件数据模型
// 只追加,事件创建后永不修改或删除;更正以新事件的形式记录
type HistoryEventModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RequestID  string    `gorm:"type:varchar(64);not null;index" json:"request_id"`
	FromState  string    `gorm:"type:varchar(32)" json:"from_state,omitempty"` // CREATE 事件为空
	ToState    string    `gorm:"type:varchar(32);not null" json:"to_state"`
	ChangeType string    `gorm:"type:varchar(32);not null;index" json:"change_type"`
	ActorID    string    `gorm:"type:varchar(64);index" json:"actor_id,omitempty"`
	ActorName  string    `gorm:"type:varchar(128)" json:"actor_name,omitempty"`
	Reason     string    `gorm:"type:text" json:"reason,omitempty"`
	Metadata   []byte    `gorm:"type:jsonb" json:"metadata,omitempty"` // 事件附加信息
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (HistoryEventModel) TableName() string {
	return "history_events"
}

// Validate 验证事件模型
func (hem *HistoryEventModel) Validate() error {
	if hem.ID == "" {
		return errors.New("event ID is required")
	}
	if hem.RequestID == "" {
		return errors.New("request ID is required")
	}
	if hem.ToState == "" {
		return errors.New("to state is required")
	}
	if hem.ChangeType == "" {
		return errors.New("change type is required")
	}
	if hem.ChangeType == ChangeTypeCreate && hem.FromState != "" {
		return errors.New("creation event must not carry a from state")
	}
	return nil
}
