package repository

import (
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"gorm.io/gorm"
)

// ChangeRequestRepository 调课申请仓储接口
type ChangeRequestRepository interface {
	Create(request *model.ChangeRequestModel) error
	FindByID(id string) (*model.ChangeRequestModel, error)
	FindByTrackingCode(code string) (*model.ChangeRequestModel, error)
	FindByFilter(filter *ChangeRequestFilter) ([]*model.ChangeRequestModel, error)
	// UpdateStateCAS 条件更新: 仅当存储中的 version 等于 expectedVersion 时写入,
	// 同一条语句内 version 加 1。返回是否命中。
	UpdateStateCAS(id string, expectedVersion int, updates map[string]interface{}) (bool, error)
}

// ChangeRequestFilter 申请查询过滤器
type ChangeRequestFilter struct {
	StudentID *string
	PeriodID  *string
	ProgramID *string
	State     *string
}

// changeRequestRepository 调课申请仓储实现
type changeRequestRepository struct {
	db *gorm.DB
}

// NewChangeRequestRepository 创建调课申请仓储
func NewChangeRequestRepository(db *gorm.DB) ChangeRequestRepository {
	return &changeRequestRepository{db: db}
}

// Create 创建申请
func (r *changeRequestRepository) Create(request *model.ChangeRequestModel) error {
	return r.db.Create(request).Error
}

// FindByID 根据 ID 查找申请
func (r *changeRequestRepository) FindByID(id string) (*model.ChangeRequestModel, error) {
	var request model.ChangeRequestModel
	if err := r.db.Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByTrackingCode 根据受理编号查找申请
func (r *changeRequestRepository) FindByTrackingCode(code string) (*model.ChangeRequestModel, error) {
	var request model.ChangeRequestModel
	if err := r.db.Where("tracking_code = ?", code).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByFilter 根据过滤器查找申请
func (r *changeRequestRepository) FindByFilter(filter *ChangeRequestFilter) ([]*model.ChangeRequestModel, error) {
	var requests []*model.ChangeRequestModel
	query := r.db.Model(&model.ChangeRequestModel{})

	if filter != nil {
		if filter.StudentID != nil {
			query = query.Where("student_id = ?", *filter.StudentID)
		}
		if filter.PeriodID != nil {
			query = query.Where("period_id = ?", *filter.PeriodID)
		}
		if filter.ProgramID != nil {
			query = query.Where("program_id = ?", *filter.ProgramID)
		}
		if filter.State != nil {
			query = query.Where("state = ?", *filter.State)
		}
	}

	err := query.Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// UpdateStateCAS 乐观并发条件更新
// WHERE 谓词同时匹配 id 和读取时的 version,写入与版本自增在同一条语句内原子完成;
// 若另一个写入者在读取之后抢先提交,谓词不再命中,RowsAffected 为 0。
func (r *changeRequestRepository) UpdateStateCAS(id string, expectedVersion int, updates map[string]interface{}) (bool, error) {
	updates["version"] = gorm.Expr("version + ?", 1)

	result := r.db.Model(&model.ChangeRequestModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
