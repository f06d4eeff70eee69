package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/google/uuid"
)

// HistoryStats 某申请的事件统计
type HistoryStats struct {
	TotalEvents       int                      `json:"total_events"`
	TotalStateChanges int                      `json:"total_state_changes"`
	TotalUpdates      int                      `json:"total_updates"`
	FirstEvent        *model.HistoryEventModel `json:"first_event"`
	LastEvent         *model.HistoryEventModel `json:"last_event"`
	UniqueActors      []string                 `json:"unique_actors"`
}

// EnrichedEvent 附带人类可读描述的事件
type EnrichedEvent struct {
	*model.HistoryEventModel
	Description         string `json:"description"`
	ReadableDescription string `json:"readable_description"`
}

// AuditTrail 生命周期审计日志
// 只追加: 事件永不更新或删除,更正以新事件记录,保证历史可作为依据
type AuditTrail interface {
	RecordCreation(requestID string, initialState string, actorID string, actorName string) error
	RecordTransition(requestID string, fromState string, toState string, actorID string, actorName string, reason string, metadata map[string]interface{}) error
	RecordUpdate(requestID string, currentState string, actorID string, actorName string, changes map[string]interface{}) error
	// RecordRouting 记录创建期路由器的并行事件(ROUTE/FALLBACK/ROUTE_ASSIGNED)
	RecordRouting(requestID string, changeType string, state string, detail string, metadata map[string]interface{}) error
	GetRequestHistory(requestID string) ([]*model.HistoryEventModel, error)
	GetHistoryStats(requestID string) (*HistoryStats, error)
	HasTransitions(requestID string) (bool, error)
	GetEnrichedHistory(requestID string) ([]*EnrichedEvent, error)
}

// auditTrail 生命周期审计日志实现
type auditTrail struct {
	eventRepo repository.HistoryEventRepository
}

// NewAuditTrail 创建审计日志服务
func NewAuditTrail(eventRepo repository.HistoryEventRepository) AuditTrail {
	return &auditTrail{eventRepo: eventRepo}
}

// RecordCreation 记录 CREATE 事件,没有 from_state
func (s *auditTrail) RecordCreation(requestID string, initialState string, actorID string, actorName string) error {
	return s.eventRepo.Append(&model.HistoryEventModel{
		ID:         uuid.New().String(),
		RequestID:  requestID,
		ToState:    initialState,
		ChangeType: model.ChangeTypeCreate,
		ActorID:    actorID,
		ActorName:  actorName,
		CreatedAt:  time.Now(),
	})
}

// RecordTransition 记录 STATE_CHANGE 事件
func (s *auditTrail) RecordTransition(requestID string, fromState string, toState string, actorID string, actorName string, reason string, metadata map[string]interface{}) error {
	encoded, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	return s.eventRepo.Append(&model.HistoryEventModel{
		ID:         uuid.New().String(),
		RequestID:  requestID,
		FromState:  fromState,
		ToState:    toState,
		ChangeType: model.ChangeTypeStateChange,
		ActorID:    actorID,
		ActorName:  actorName,
		Reason:     reason,
		Metadata:   encoded,
		CreatedAt:  time.Now(),
	})
}

// RecordUpdate 记录 UPDATE 事件,用于不改变状态的字段修改
func (s *auditTrail) RecordUpdate(requestID string, currentState string, actorID string, actorName string, changes map[string]interface{}) error {
	encoded, err := encodeMetadata(changes)
	if err != nil {
		return err
	}
	return s.eventRepo.Append(&model.HistoryEventModel{
		ID:         uuid.New().String(),
		RequestID:  requestID,
		FromState:  currentState,
		ToState:    currentState,
		ChangeType: model.ChangeTypeUpdate,
		ActorID:    actorID,
		ActorName:  actorName,
		Metadata:   encoded,
		CreatedAt:  time.Now(),
	})
}

// RecordRouting 记录路由器事件
func (s *auditTrail) RecordRouting(requestID string, changeType string, state string, detail string, metadata map[string]interface{}) error {
	encoded, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	return s.eventRepo.Append(&model.HistoryEventModel{
		ID:         uuid.New().String(),
		RequestID:  requestID,
		FromState:  state,
		ToState:    state,
		ChangeType: changeType,
		Reason:     detail,
		Metadata:   encoded,
		CreatedAt:  time.Now(),
	})
}

// GetRequestHistory 按时间升序返回某申请的全部事件
func (s *auditTrail) GetRequestHistory(requestID string) ([]*model.HistoryEventModel, error) {
	return s.eventRepo.FindByRequestID(requestID)
}

// GetHistoryStats 计算某申请的事件统计
// 首末事件取自升序列表的两端,排序契约由仓储保证
func (s *auditTrail) GetHistoryStats(requestID string) (*HistoryStats, error) {
	events, err := s.eventRepo.FindByRequestID(requestID)
	if err != nil {
		return nil, err
	}

	stats := &HistoryStats{
		TotalEvents:  len(events),
		UniqueActors: []string{},
	}
	if len(events) == 0 {
		return stats, nil
	}

	stats.FirstEvent = events[0]
	stats.LastEvent = events[len(events)-1]

	seen := make(map[string]bool)
	for _, event := range events {
		switch event.ChangeType {
		case model.ChangeTypeStateChange:
			stats.TotalStateChanges++
		case model.ChangeTypeUpdate:
			stats.TotalUpdates++
		}
		if event.ActorID != "" && !seen[event.ActorID] {
			seen[event.ActorID] = true
			stats.UniqueActors = append(stats.UniqueActors, event.ActorID)
		}
	}
	return stats, nil
}

// HasTransitions 判断申请是否发生过状态变更
// 用于在 UI 上区分"新申请"与"已被处理过的申请",不暴露原始事件数
func (s *auditTrail) HasTransitions(requestID string) (bool, error) {
	count, err := s.eventRepo.CountByType(requestID, model.ChangeTypeStateChange)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// actionPhrases 目标状态到动作短语的固定映射
// 自然语言措辞只存在于这张表,不进入状态机本身
var actionPhrases = map[string]string{
	model.StatePending:     "reopened",
	model.StateInReview:    "started reviewing",
	model.StateWaitingInfo: "requested additional information for",
	model.StateApproved:    "approved",
	model.StateRejected:    "rejected",
}

// GetEnrichedHistory 为每个事件派生两条人类可读描述
func (s *auditTrail) GetEnrichedHistory(requestID string) ([]*EnrichedEvent, error) {
	events, err := s.eventRepo.FindByRequestID(requestID)
	if err != nil {
		return nil, err
	}

	enriched := make([]*EnrichedEvent, 0, len(events))
	for _, event := range events {
		enriched = append(enriched, &EnrichedEvent{
			HistoryEventModel:   event,
			Description:         describeEvent(event),
			ReadableDescription: readableDescription(event),
		})
	}
	return enriched, nil
}

// describeEvent 派生事件的简短描述
func describeEvent(event *model.HistoryEventModel) string {
	switch event.ChangeType {
	case model.ChangeTypeCreate:
		return "Request created in state " + event.ToState
	case model.ChangeTypeStateChange:
		return fmt.Sprintf("State changed from %s to %s", event.FromState, event.ToState)
	case model.ChangeTypeUpdate:
		return "Request details updated"
	default:
		return fmt.Sprintf("%s event in state %s", event.ChangeType, event.ToState)
	}
}

// readableDescription 派生面向最终用户的句子
// 未知状态退回到通用模板描述
func readableDescription(event *model.HistoryEventModel) string {
	actor := event.ActorName
	if actor == "" {
		actor = "The system"
	}

	switch event.ChangeType {
	case model.ChangeTypeCreate:
		return actor + " submitted the change request"
	case model.ChangeTypeUpdate:
		return actor + " updated the change request"
	case model.ChangeTypeStateChange:
		phrase, ok := actionPhrases[event.ToState]
		if !ok {
			phrase = "moved to " + event.ToState
		}
		sentence := actor + " " + phrase + " the request"
		if event.Reason != "" {
			sentence += ": " + event.Reason
		}
		return sentence
	default:
		return fmt.Sprintf("%s recorded for the request (%s)", event.ChangeType, event.ToState)
	}
}

// encodeMetadata 序列化事件附加信息,nil 不产生字段
func encodeMetadata(metadata map[string]interface{}) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event metadata: %w", err)
	}
	return encoded, nil
}
