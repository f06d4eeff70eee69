package repository

import (
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"gorm.io/gorm"
)

// HistoryEventRepository 生命周期事件仓储接口
// 只追加: 不提供更新或删除方法
type HistoryEventRepository interface {
	Append(event *model.HistoryEventModel) error
	FindByRequestID(requestID string) ([]*model.HistoryEventModel, error)
	CountByType(requestID string, changeType string) (int64, error)
}

// historyEventRepository 生命周期事件仓储实现
type historyEventRepository struct {
	db *gorm.DB
}

// NewHistoryEventRepository 创建生命周期事件仓储
func NewHistoryEventRepository(db *gorm.DB) HistoryEventRepository {
	return &historyEventRepository{db: db}
}

// Append 追加事件
func (r *historyEventRepository) Append(event *model.HistoryEventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.Create(event).Error
}

// FindByRequestID 按时间升序返回某申请的全部事件
// 升序是契约的一部分: 调用方按位置取首末事件,不自行排序
func (r *historyEventRepository) FindByRequestID(requestID string) ([]*model.HistoryEventModel, error) {
	var events []*model.HistoryEventModel
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// CountByType 统计某申请指定类型的事件数
func (r *historyEventRepository) CountByType(requestID string, changeType string) (int64, error) {
	var count int64
	err := r.db.Model(&model.HistoryEventModel{}).
		Where("request_id = ? AND change_type = ?", requestID, changeType).
		Count(&count).Error
	return count, err
}
