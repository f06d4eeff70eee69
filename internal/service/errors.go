package service

import "fmt"

// NotFoundError 申请不存在
type NotFoundError struct {
	RequestID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("change request %s not found", e.RequestID)
}

// RedundantTransitionError 目标状态与当前状态相同
// 与真正的冲突区分开: 重放同一个"批准"点击会得到该错误而不是静默无操作,
// 需要"确保处于状态 X"语义的调用方使用 ChangeStateIdempotent
type RedundantTransitionError struct {
	RequestID      string
	CurrentState   string
	AttemptedState string
}

func (e *RedundantTransitionError) Error() string {
	return fmt.Sprintf("request %s is already in state %s, transition to %s is redundant",
		e.RequestID, e.CurrentState, e.AttemptedState)
}

// ConcurrentModificationError 版本不匹配
// 无论是提前检查 expectedVersion 还是条件更新未命中,都返回该错误;
// 调用方重新读取聚合后用新版本重试,引擎本身从不自动重试
type ConcurrentModificationError struct {
	RequestID       string
	ExpectedVersion int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("request %s was modified concurrently (expected version %d)",
		e.RequestID, e.ExpectedVersion)
}

// InvalidTransitionError 状态机禁止该转换
// 覆盖三种情况: 规则图中没有这条边、规则被停用、缺少必填理由
type InvalidTransitionError struct {
	FromState string
	ToState   string
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s: %s", e.FromState, e.ToState, e.Reason)
}
