package integration

import (
	"errors"
	"fmt"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/model"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouteDecision 路由结果: 分配的项目与优先级权重
type RouteDecision struct {
	ProgramID    string `json:"program_id"`
	Priority     int    `json:"priority"`
	UsedFallback bool   `json:"used_fallback"`
}

// RoutingRecorder 路由事件记录器
// 由审计日志实现,路由事件与状态机的 CREATE 事件并行写入
type RoutingRecorder interface {
	RecordRouting(requestID string, changeType string, state string, detail string, metadata map[string]interface{}) error
}

// RequestRouter 创建期项目路由与优先级分配器
type RequestRouter interface {
	Route(requestID string, programID string, recorder RoutingRecorder) (*RouteDecision, error)
}

// requestRouter 项目路由实现
// 回退链: 申请的项目 → 默认项目 → 紧急项目;全部缺失时路由失败
type requestRouter struct {
	programRepo repository.ProgramRepository
	logger      *logrus.Logger
}

// NewRequestRouter 创建项目路由器
func NewRequestRouter(programRepo repository.ProgramRepository, logger *logrus.Logger) RequestRouter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &requestRouter{programRepo: programRepo, logger: logger}
}

// Route 为新申请分配项目和优先级
func (r *requestRouter) Route(requestID string, programID string, recorder RoutingRecorder) (*RouteDecision, error) {
	r.record(recorder, requestID, model.ChangeTypeRoute, "routing started",
		map[string]interface{}{"requested_program": programID})

	program, reason := r.resolveProgram(programID)
	usedFallback := false

	if program == nil {
		// 第一级回退: 默认项目
		fallback, err := r.programRepo.FindDefault()
		if err == nil {
			program = fallback
			usedFallback = true
			r.record(recorder, requestID, model.ChangeTypeFallback,
				fmt.Sprintf("%s, falling back to default program %s", reason, fallback.ID), nil)
		}
	}
	if program == nil {
		// 第二级回退: 紧急项目
		emergency, err := r.programRepo.FindEmergency()
		if err != nil {
			return nil, fmt.Errorf("routing failed: %s and no fallback program is configured", reason)
		}
		program = emergency
		usedFallback = true
		r.record(recorder, requestID, model.ChangeTypeFallback,
			fmt.Sprintf("%s, falling back to emergency program %s", reason, emergency.ID), nil)
	}

	decision := &RouteDecision{
		ProgramID:    program.ID,
		Priority:     program.Priority,
		UsedFallback: usedFallback,
	}
	r.record(recorder, requestID, model.ChangeTypeRouteAssigned,
		fmt.Sprintf("assigned to program %s with priority %d", decision.ProgramID, decision.Priority),
		map[string]interface{}{"program_id": decision.ProgramID, "priority": decision.Priority, "used_fallback": usedFallback})

	return decision, nil
}

// resolveProgram 解析申请指定的项目,返回不可用原因
func (r *requestRouter) resolveProgram(programID string) (*model.AcademicProgramModel, string) {
	if programID == "" {
		return nil, "no program specified"
	}
	program, err := r.programRepo.FindByID(programID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Sprintf("program %s does not exist", programID)
		}
		return nil, fmt.Sprintf("program %s could not be loaded", programID)
	}
	if !program.Active {
		return nil, fmt.Sprintf("program %s is inactive", programID)
	}
	return program, ""
}

// record 路由事件写入失败不阻断路由本身,降级为日志缺口
func (r *requestRouter) record(recorder RoutingRecorder, requestID string, changeType string, detail string, metadata map[string]interface{}) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordRouting(requestID, changeType, model.StatePending, detail, metadata); err != nil {
		r.logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"change_type": changeType,
		}).WithError(err).Warn("routing event could not be recorded")
	}
}
