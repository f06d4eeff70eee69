package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/integration"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/metrics"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateRequestInput 创建调课申请的输入
// @Description 创建调课申请的请求参数
type CreateRequestInput struct {
	StudentID     string `json:"student_id" example:"stu-001" binding:"required"`
	PeriodID      string `json:"period_id" example:"2025-2" binding:"required"`
	ProgramID     string `json:"program_id" example:"prog-001"` // 可选,路由器会校验并回退
	SubjectID     string `json:"subject_id" example:"subj-001" binding:"required"`
	SourceGroupID string `json:"source_group_id" example:"grp-001" binding:"required"`
	TargetGroupID string `json:"target_group_id" example:"grp-002" binding:"required"`
	Reason        string `json:"reason" example:"课程时间冲突"`
	ActorID       string `json:"-"`
	ActorName     string `json:"-"`
}

// ChangeRequestService 调课申请编排服务
// 组合状态管理器、投影器与外部协作方,是控制器唯一的入口
type ChangeRequestService interface {
	Create(ctx context.Context, input *CreateRequestInput) (*model.ChangeRequestModel, error)
	ChangeState(ctx context.Context, requestID string, toState string, opts *ChangeStateOptions, expectedVersion *int) (*StateChangeResult, error)
	Get(requestID string) (*model.ChangeRequestModel, error)
	List(filter *repository.ChangeRequestFilter) ([]*model.ChangeRequestModel, error)
	GetCurrentStateInfo(requestID string, callerPermissions []string) (*ConsolidatedView, error)
	GetAvailableActions(requestID string) ([]*AvailableTransition, error)
	GetRequestHistory(requestID string) ([]*model.HistoryEventModel, error)
	GetEnrichedHistory(requestID string) ([]*EnrichedEvent, error)
	GetHistoryStats(requestID string) (*HistoryStats, error)
	HasStateTransitions(requestID string) (bool, error)
	GetGroupSchedule(groupID string) ([]*model.GroupScheduleModel, error)
}

// changeRequestService 调课申请编排服务实现
type changeRequestService struct {
	requestRepo repository.ChangeRequestRepository
	studentRepo repository.StudentRepository
	groupRepo   repository.GroupRepository
	stateMgr    StateManager
	projector   StateProjector
	audit       AuditTrail
	validator   integration.ScheduleValidator
	mutator     integration.EnrollmentMutator
	router      integration.RequestRouter
	logger      *logrus.Logger
}

// NewChangeRequestService 创建调课申请服务
func NewChangeRequestService(
	requestRepo repository.ChangeRequestRepository,
	studentRepo repository.StudentRepository,
	groupRepo repository.GroupRepository,
	stateMgr StateManager,
	projector StateProjector,
	audit AuditTrail,
	validator integration.ScheduleValidator,
	mutator integration.EnrollmentMutator,
	router integration.RequestRouter,
	logger *logrus.Logger,
) ChangeRequestService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &changeRequestService{
		requestRepo: requestRepo,
		studentRepo: studentRepo,
		groupRepo:   groupRepo,
		stateMgr:    stateMgr,
		projector:   projector,
		audit:       audit,
		validator:   validator,
		mutator:     mutator,
		router:      router,
		logger:      logger,
	}
}

// Create 创建调课申请
// 顺序: 校验学生与班组 → 课表预检 → 路由分配项目与优先级 →
// 生成受理编号 → 以 PENDING/version 1 落库 → 写 CREATE 审计事件
func (s *changeRequestService) Create(ctx context.Context, input *CreateRequestInput) (*model.ChangeRequestModel, error) {
	if input.SourceGroupID == input.TargetGroupID {
		return nil, fmt.Errorf("source and target group must differ")
	}

	if _, err := s.studentRepo.FindByID(input.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("student %s not found", input.StudentID)
		}
		return nil, err
	}
	if _, err := s.groupRepo.FindByID(input.SourceGroupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("source group %s not found", input.SourceGroupID)
		}
		return nil, err
	}
	if _, err := s.groupRepo.FindByID(input.TargetGroupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("target group %s not found", input.TargetGroupID)
		}
		return nil, err
	}

	validation, err := s.validator.Validate(input.StudentID, input.SourceGroupID, input.TargetGroupID)
	if err != nil {
		return nil, fmt.Errorf("schedule validation failed: %w", err)
	}
	if !validation.IsValid {
		return nil, fmt.Errorf("requested change is not feasible: %s", strings.Join(validation.Errors, "; "))
	}

	requestID := uuid.New().String()

	decision, err := s.router.Route(requestID, input.ProgramID, s.audit)
	if err != nil {
		return nil, err
	}

	request := &model.ChangeRequestModel{
		ID:            requestID,
		StudentID:     input.StudentID,
		PeriodID:      input.PeriodID,
		ProgramID:     decision.ProgramID,
		SubjectID:     input.SubjectID,
		SourceGroupID: input.SourceGroupID,
		TargetGroupID: input.TargetGroupID,
		State:         model.StatePending,
		Version:       1,
		Priority:      decision.Priority,
		Reason:        input.Reason,
	}

	// 受理编号带唯一索引兜底,碰撞时换一个后缀重试
	var created bool
	for attempt := 0; attempt < 3 && !created; attempt++ {
		request.TrackingCode = newTrackingCode()
		if err := request.Validate(); err != nil {
			return nil, err
		}
		err = s.requestRepo.Create(request)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, gorm.ErrDuplicatedKey):
			continue
		default:
			return nil, fmt.Errorf("failed to create change request: %w", err)
		}
	}
	if !created {
		return nil, fmt.Errorf("failed to allocate a unique tracking code")
	}

	metrics.RecordRequestCreated()

	if err := s.audit.RecordCreation(request.ID, request.State, input.ActorID, input.ActorName); err != nil {
		s.logger.WithField("request_id", request.ID).WithError(err).
			Warn("request created but creation event could not be recorded")
	}

	return request, nil
}

// ChangeState 执行状态变更
// 转向 APPROVED 时,把课表复核与选课变更挂载为状态管理器的提交前回调:
// 回调在幂等/版本/规则守卫全部通过之后才执行,守卫拒绝的请求
// (冗余批准、过期版本、未定义转换)不会产生任何选课副作用
func (s *changeRequestService) ChangeState(ctx context.Context, requestID string, toState string, opts *ChangeStateOptions, expectedVersion *int) (*StateChangeResult, error) {
	if opts == nil {
		opts = &ChangeStateOptions{}
	}

	if toState == model.StateApproved {
		opts.PreCommit = func(request *model.ChangeRequestModel) error {
			validation, err := s.validator.Validate(request.StudentID, request.SourceGroupID, request.TargetGroupID)
			if err != nil {
				return fmt.Errorf("schedule re-validation failed: %w", err)
			}
			if !validation.IsValid {
				return &InvalidTransitionError{
					FromState: request.State,
					ToState:   toState,
					Reason:    "the change is no longer executable: " + strings.Join(validation.Errors, "; "),
				}
			}

			if err := s.mutator.ApplyGroupChange(request.StudentID, request.SourceGroupID, request.TargetGroupID); err != nil {
				return fmt.Errorf("enrollment change could not be applied: %w", err)
			}
			return nil
		}
	}

	return s.stateMgr.ChangeState(ctx, requestID, toState, opts, expectedVersion)
}

// Get 根据 ID 获取申请
func (s *changeRequestService) Get(requestID string) (*model.ChangeRequestModel, error) {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}
	return request, nil
}

// List 按过滤器列出申请
func (s *changeRequestService) List(filter *repository.ChangeRequestFilter) ([]*model.ChangeRequestModel, error) {
	return s.requestRepo.FindByFilter(filter)
}

// GetCurrentStateInfo 获取聚合当前状态视图
func (s *changeRequestService) GetCurrentStateInfo(requestID string, callerPermissions []string) (*ConsolidatedView, error) {
	return s.projector.GetCurrentStateInfo(requestID, callerPermissions)
}

// GetAvailableActions 获取申请的可用转换
func (s *changeRequestService) GetAvailableActions(requestID string) ([]*AvailableTransition, error) {
	return s.stateMgr.GetAvailableTransitionsForRequest(requestID)
}

// GetRequestHistory 获取申请的事件历史
func (s *changeRequestService) GetRequestHistory(requestID string) ([]*model.HistoryEventModel, error) {
	return s.audit.GetRequestHistory(requestID)
}

// GetEnrichedHistory 获取带可读描述的事件历史
func (s *changeRequestService) GetEnrichedHistory(requestID string) ([]*EnrichedEvent, error) {
	return s.audit.GetEnrichedHistory(requestID)
}

// GetHistoryStats 获取申请的事件统计
func (s *changeRequestService) GetHistoryStats(requestID string) (*HistoryStats, error) {
	return s.audit.GetHistoryStats(requestID)
}

// HasStateTransitions 判断申请是否发生过状态变更
func (s *changeRequestService) HasStateTransitions(requestID string) (bool, error) {
	return s.audit.HasTransitions(requestID)
}

// GetGroupSchedule 获取班组课表
func (s *changeRequestService) GetGroupSchedule(groupID string) ([]*model.GroupScheduleModel, error) {
	return s.validator.GetGroupSchedule(groupID)
}

// newTrackingCode 生成受理编号: SGC-日期-8 位随机后缀
func newTrackingCode() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("SGC-%s-%s", time.Now().Format("20060102"), suffix)
}
