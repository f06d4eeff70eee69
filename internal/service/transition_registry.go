package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/google/uuid"
)

// TransitionCheck 转换合法性检查结果
type TransitionCheck struct {
	IsValid             bool
	Error               string
	RequiresReason      bool
	RequiredPermissions []string
}

// AvailableTransition 从某状态出发的一条可用转换
type AvailableTransition struct {
	ToState             string   `json:"to_state"`
	Description         string   `json:"description,omitempty"`
	RequiresReason      bool     `json:"requires_reason"`
	RequiredPermissions []string `json:"required_permissions"`
}

// CreateTransitionOptions 创建转换规则的可选项
type CreateTransitionOptions struct {
	Description         string
	RequiresReason      bool
	RequiredPermissions []string
	Active              *bool // 缺省为启用
}

// TransitionRegistry 状态转换规则注册表
// 规则是数据而不是代码: 部署方可以增删状态边而无需重新构建。
// 缓存为不可变快照,读取方永不阻塞;写入(建规则)后显式 Refresh,
// 通过原子指针替换整体换入新快照,避免读到构建到一半的结构。
type TransitionRegistry interface {
	IsValidTransition(fromState string, toState string) *TransitionCheck
	GetAvailableTransitions(fromState string) []*AvailableTransition
	Refresh() error
	CreateTransition(fromState string, toState string, opts *CreateTransitionOptions) (*model.TransitionRuleModel, error)
	ListRules() ([]*model.TransitionRuleModel, error)
}

// edgeKey 规则图的边键
// 结构体键而非 "{from}_{to}" 字符串拼接,状态名含分隔符也不会产生碰撞
type edgeKey struct {
	From string
	To   string
}

// ruleSnapshot 规则缓存的不可变快照
type ruleSnapshot struct {
	byEdge   map[edgeKey]*model.TransitionRuleModel
	bySource map[string][]*model.TransitionRuleModel // 仅含启用规则,按 to_state 排序
}

// transitionRegistry 状态转换规则注册表实现
type transitionRegistry struct {
	ruleRepo repository.TransitionRuleRepository
	cache    atomic.Pointer[ruleSnapshot]
}

// NewTransitionRegistry 创建注册表并立即加载缓存
// 规则表不可达时直接失败,避免带着空缓存上线
func NewTransitionRegistry(ruleRepo repository.TransitionRuleRepository) (TransitionRegistry, error) {
	r := &transitionRegistry{ruleRepo: ruleRepo}
	if err := r.Refresh(); err != nil {
		return nil, fmt.Errorf("failed to load transition rules: %w", err)
	}
	return r, nil
}

// IsValidTransition 判断 (from → to) 是否为合法转换
func (r *transitionRegistry) IsValidTransition(fromState string, toState string) *TransitionCheck {
	if fromState == toState {
		return &TransitionCheck{
			IsValid: false,
			Error:   "cannot transition to the same state",
		}
	}

	snapshot := r.cache.Load()
	rule, ok := snapshot.byEdge[edgeKey{From: fromState, To: toState}]
	if !ok {
		return &TransitionCheck{
			IsValid: false,
			Error:   fmt.Sprintf("no transition rule defined from %s to %s", fromState, toState),
		}
	}
	if !rule.Active {
		return &TransitionCheck{
			IsValid: false,
			Error:   fmt.Sprintf("transition from %s to %s is currently disabled", fromState, toState),
		}
	}

	return &TransitionCheck{
		IsValid:             true,
		RequiresReason:      rule.RequiresReason,
		RequiredPermissions: decodePermissions(rule.RequiredPermissions),
	}
}

// GetAvailableTransitions 返回从某状态出发的全部启用转换
func (r *transitionRegistry) GetAvailableTransitions(fromState string) []*AvailableTransition {
	snapshot := r.cache.Load()

	rules := snapshot.bySource[fromState]
	transitions := make([]*AvailableTransition, 0, len(rules))
	for _, rule := range rules {
		transitions = append(transitions, &AvailableTransition{
			ToState:             rule.ToState,
			Description:         rule.Description,
			RequiresReason:      rule.RequiresReason,
			RequiredPermissions: decodePermissions(rule.RequiredPermissions),
		})
	}
	return transitions
}

// Refresh 从规则表整体重建缓存
// 注册表不做定时过期: 陈旧程度由显式失效界定,规则变更方在写入后调用本方法
func (r *transitionRegistry) Refresh() error {
	rules, err := r.ruleRepo.FindAll()
	if err != nil {
		return err
	}

	snapshot := &ruleSnapshot{
		byEdge:   make(map[edgeKey]*model.TransitionRuleModel, len(rules)),
		bySource: make(map[string][]*model.TransitionRuleModel),
	}
	for _, rule := range rules {
		snapshot.byEdge[edgeKey{From: rule.FromState, To: rule.ToState}] = rule
		if rule.Active {
			snapshot.bySource[rule.FromState] = append(snapshot.bySource[rule.FromState], rule)
		}
	}
	for _, list := range snapshot.bySource {
		sort.Slice(list, func(i, j int) bool { return list[i].ToState < list[j].ToState })
	}

	r.cache.Store(snapshot)
	return nil
}

// CreateTransition 插入规则并刷新缓存
func (r *transitionRegistry) CreateTransition(fromState string, toState string, opts *CreateTransitionOptions) (*model.TransitionRuleModel, error) {
	if opts == nil {
		opts = &CreateTransitionOptions{}
	}
	active := true
	if opts.Active != nil {
		active = *opts.Active
	}

	permissions := opts.RequiredPermissions
	if permissions == nil {
		permissions = []string{}
	}
	encoded, err := json.Marshal(permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode required permissions: %w", err)
	}

	rule := &model.TransitionRuleModel{
		ID:                  uuid.New().String(),
		FromState:           fromState,
		ToState:             toState,
		Description:         opts.Description,
		RequiresReason:      opts.RequiresReason,
		RequiredPermissions: encoded,
		Active:              active,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := r.ruleRepo.Create(rule); err != nil {
		return nil, fmt.Errorf("failed to create transition rule: %w", err)
	}

	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules 返回规则表全部规则
func (r *transitionRegistry) ListRules() ([]*model.TransitionRuleModel, error) {
	return r.ruleRepo.FindAll()
}

// decodePermissions 解码规则的权限标签,损坏的数据按空集处理
func decodePermissions(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var permissions []string
	if err := json.Unmarshal(raw, &permissions); err != nil {
		return []string{}
	}
	return permissions
}
