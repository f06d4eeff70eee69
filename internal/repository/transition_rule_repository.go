package repository

import (
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"gorm.io/gorm"
)

// TransitionRuleRepository 状态转换规则仓储接口
type TransitionRuleRepository interface {
	Create(rule *model.TransitionRuleModel) error
	FindAll() ([]*model.TransitionRuleModel, error)
	FindByEdge(fromState string, toState string) (*model.TransitionRuleModel, error)
	SetActive(id string, active bool) error
}

// transitionRuleRepository 状态转换规则仓储实现
type transitionRuleRepository struct {
	db *gorm.DB
}

// NewTransitionRuleRepository 创建状态转换规则仓储
func NewTransitionRuleRepository(db *gorm.DB) TransitionRuleRepository {
	return &transitionRuleRepository{db: db}
}

// Create 创建规则
func (r *transitionRuleRepository) Create(rule *model.TransitionRuleModel) error {
	return r.db.Create(rule).Error
}

// FindAll 查找全部规则(包括停用的,注册表缓存需要区分两种无效原因)
func (r *transitionRuleRepository) FindAll() ([]*model.TransitionRuleModel, error) {
	var rules []*model.TransitionRuleModel
	err := r.db.Order("from_state ASC, to_state ASC").Find(&rules).Error
	return rules, err
}

// FindByEdge 根据 (from, to) 边查找规则
func (r *transitionRuleRepository) FindByEdge(fromState string, toState string) (*model.TransitionRuleModel, error) {
	var rule model.TransitionRuleModel
	if err := r.db.Where("from_state = ? AND to_state = ?", fromState, toState).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// SetActive 启用或停用规则
func (r *transitionRuleRepository) SetActive(id string, active bool) error {
	return r.db.Model(&model.TransitionRuleModel{}).
		Where("id = ?", id).
		Update("active", active).Error
}
