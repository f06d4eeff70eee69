package service

import (
	"context"
	"errors"
	"time"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/metrics"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChangeStateOptions 状态变更的可选参数
type ChangeStateOptions struct {
	ActorID      string
	ActorName    string
	Reason       string
	Observations string
	Metadata     map[string]interface{}

	// PreCommit 在全部守卫通过之后、条件写入之前执行的外部副作用。
	// 返回错误则中止转换,申请保持原状态;副作用绝不能先于
	// 幂等/版本/规则守卫执行,否则守卫拒绝时副作用已无法收回
	PreCommit func(request *model.ChangeRequestModel) error
}

// StateChangeResult 状态变更成功后的结果
type StateChangeResult struct {
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Version       int       `json:"version"`
	ChangedAt     time.Time `json:"changed_at"`
	ChangedBy     string    `json:"changed_by"`
}

// CurrentState 申请的当前状态与版本
type CurrentState struct {
	State   string `json:"state"`
	Version int    `json:"version"`
}

// StateManager 状态变更事务核心
// 正确性不依赖单线程执行,完全依赖存储层的原子条件写入:
// 多个服务实例并发调用时,同一起始版本上恰有一个写入者成功,
// 另一个得到 ConcurrentModificationError,没有静默覆盖或合并。
type StateManager interface {
	ChangeState(ctx context.Context, requestID string, toState string, opts *ChangeStateOptions, expectedVersion *int) (*StateChangeResult, error)
	// ChangeStateIdempotent "确保处于状态 X"语义: 目标状态已达成时返回 (nil, nil)
	ChangeStateIdempotent(ctx context.Context, requestID string, toState string, opts *ChangeStateOptions, expectedVersion *int) (*StateChangeResult, error)
	GetCurrentState(requestID string) (*CurrentState, error)
	GetAvailableTransitionsForRequest(requestID string) ([]*AvailableTransition, error)
}

// stateManager 状态变更事务核心实现
type stateManager struct {
	requestRepo repository.ChangeRequestRepository
	registry    TransitionRegistry
	audit       AuditTrail
	logger      *logrus.Logger
}

// NewStateManager 创建状态管理器
func NewStateManager(requestRepo repository.ChangeRequestRepository, registry TransitionRegistry, audit AuditTrail, logger *logrus.Logger) StateManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &stateManager{
		requestRepo: requestRepo,
		registry:    registry,
		audit:       audit,
		logger:      logger,
	}
}

// ChangeState 校验并应用一次状态转换
// 检查有固定顺序,每一步是一种独立的失败模式,调用方可用 errors.As 区分
func (s *stateManager) ChangeState(ctx context.Context, requestID string, toState string, opts *ChangeStateOptions, expectedVersion *int) (*StateChangeResult, error) {
	if opts == nil {
		opts = &ChangeStateOptions{}
	}

	// 1. 加载聚合
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}

	// 2. 幂等守卫: 目标状态与当前状态相同
	if request.State == toState {
		return nil, &RedundantTransitionError{
			RequestID:      requestID,
			CurrentState:   request.State,
			AttemptedState: toState,
		}
	}

	// 3. 乐观并发守卫: 调用方的版本已经过期时快速失败,不做后续工作
	if expectedVersion != nil && *expectedVersion != request.Version {
		return nil, &ConcurrentModificationError{
			RequestID:       requestID,
			ExpectedVersion: *expectedVersion,
		}
	}

	// 4. 规则图校验
	check := s.registry.IsValidTransition(request.State, toState)
	if !check.IsValid {
		return nil, &InvalidTransitionError{
			FromState: request.State,
			ToState:   toState,
			Reason:    check.Error,
		}
	}

	// 5. 必填理由校验
	if check.RequiresReason && opts.Reason == "" {
		return nil, &InvalidTransitionError{
			FromState: request.State,
			ToState:   toState,
			Reason:    "a reason is required for this transition and none was supplied",
		}
	}

	// 6. 外部副作用: 守卫已全部通过,提交之前执行调用方挂载的写入。
	// 与第 7 步的条件写入之间仍有一个并发窗口,这是存储层只提供
	// 单文档条件写入的固有代价
	if opts.PreCommit != nil {
		if err := opts.PreCommit(request); err != nil {
			return nil, err
		}
	}

	// 7. 条件更新: 写入以第 1 步读到的 version 为谓词,版本自增在同一语句内完成
	now := time.Now()
	updates := map[string]interface{}{
		"state":                      toState,
		"last_state_changed_by":      opts.ActorID,
		"last_state_changed_by_name": opts.ActorName,
		"last_state_changed_at":      now,
		"updated_at":                 now,
	}
	if model.IsTerminalState(toState) {
		updates["resolved_at"] = now
		updates["resolution_reason"] = opts.Reason
	}
	if opts.Observations != "" {
		// 备注只追加,不覆盖既有内容
		observations := opts.Observations
		if request.Observations != "" {
			observations = request.Observations + "\n" + opts.Observations
		}
		updates["observations"] = observations
	}

	matched, err := s.requestRepo.UpdateStateCAS(requestID, request.Version, updates)
	if err != nil {
		return nil, err
	}

	// 8. 未命中: 第 1 步与第 7 步之间有另一个写入者抢先提交(TOCTOU 窗口)
	if !matched {
		metrics.RecordConcurrentConflict()
		return nil, &ConcurrentModificationError{
			RequestID:       requestID,
			ExpectedVersion: request.Version,
		}
	}

	metrics.RecordStateChange(toState)

	// 9. 条件写入一旦成功,状态变更即是权威的;审计写入失败不回滚,
	// 只降级为可恢复的日志缺口,绝不向调用方报告一次实际已发生的批准失败
	if err := s.audit.RecordTransition(requestID, request.State, toState, opts.ActorID, opts.ActorName, opts.Reason, opts.Metadata); err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"from_state": request.State,
			"to_state":   toState,
		}).WithError(err).Warn("state change committed but audit event could not be recorded")
	}

	return &StateChangeResult{
		PreviousState: request.State,
		NewState:      toState,
		Version:       request.Version + 1,
		ChangedAt:     now,
		ChangedBy:     opts.ActorID,
	}, nil
}

// ChangeStateIdempotent 幂等包装: 冗余转换不视为错误
func (s *stateManager) ChangeStateIdempotent(ctx context.Context, requestID string, toState string, opts *ChangeStateOptions, expectedVersion *int) (*StateChangeResult, error) {
	result, err := s.ChangeState(ctx, requestID, toState, opts, expectedVersion)
	if err != nil {
		var redundant *RedundantTransitionError
		if errors.As(err, &redundant) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

// GetCurrentState 返回申请的当前状态与版本
func (s *stateManager) GetCurrentState(requestID string) (*CurrentState, error) {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}
	return &CurrentState{State: request.State, Version: request.Version}, nil
}

// GetAvailableTransitionsForRequest 基于申请的实时状态查询可用转换
func (s *stateManager) GetAvailableTransitionsForRequest(requestID string) ([]*AvailableTransition, error) {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}
	return s.registry.GetAvailableTransitions(request.State), nil
}
