package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/auth"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/service"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/utils"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/websocket"
)

// ChangeRequestController 调课申请控制器
type ChangeRequestController struct {
	requestService service.ChangeRequestService
	hub            *websocket.Hub
}

// NewChangeRequestController 创建调课申请控制器
func NewChangeRequestController(requestService service.ChangeRequestService, hub *websocket.Hub) *ChangeRequestController {
	return &ChangeRequestController{
		requestService: requestService,
		hub:            hub,
	}
}

// validateRequestID 验证申请 ID 并返回错误响应（如果无效）
func (c *ChangeRequestController) validateRequestID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateRequestID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request ID", err.Error())
		return false
	}
	return true
}

// changeStateBody 状态变更请求体
type changeStateBody struct {
	ToState      string `json:"to_state" example:"IN_REVIEW" binding:"required"`
	Reason       string `json:"reason" example:"documentation incomplete"`
	Observations string `json:"observations" example:"se solicitó certificado médico"`
}

// parseExpectedVersion 从 If-Match 头解析期望版本号
// 缺省返回 (nil, true): 调用方放弃乐观并发检查
func parseExpectedVersion(ctx *gin.Context) (*int, bool) {
	header := ctx.GetHeader("If-Match")
	if header == "" {
		return nil, true
	}

	trimmed := strings.Trim(strings.TrimSpace(header), `"`)
	version, err := strconv.Atoi(trimmed)
	if err != nil || version < 1 {
		Error(ctx, http.StatusBadRequest, "invalid If-Match header", "expected a positive integer version")
		return nil, false
	}
	return &version, true
}

// Create 创建调课申请
// @Summary      创建调课申请
// @Description  创建新的调课申请,自动路由到学术项目并生成跟踪码
// @Tags         申请管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateRequestInput true "申请信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /requests [post]
// @Security     BearerAuth
func (c *ChangeRequestController) Create(ctx *gin.Context) {
	var input service.CreateRequestInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input.ActorID = ctx.GetString(auth.ContextUserID)
	input.ActorName = ctx.GetString(auth.ContextUserName)

	request, err := c.requestService.Create(ctx.Request.Context(), &input)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Created(ctx, request)
}

// List 查询调课申请列表
// @Summary      查询调课申请列表
// @Description  按学生、学期、项目或状态过滤申请
// @Tags         申请管理
// @Produce      json
// @Param        student_id query string false "学生 ID"
// @Param        period_id  query string false "学期 ID"
// @Param        program_id query string false "学术项目 ID"
// @Param        state      query string false "状态"
// @Success      200  {object}  Response
// @Failure      500  {object}  ErrorResponse
// @Router       /requests [get]
// @Security     BearerAuth
func (c *ChangeRequestController) List(ctx *gin.Context) {
	filter := &repository.ChangeRequestFilter{}
	if v := ctx.Query("student_id"); v != "" {
		filter.StudentID = &v
	}
	if v := ctx.Query("period_id"); v != "" {
		filter.PeriodID = &v
	}
	if v := ctx.Query("program_id"); v != "" {
		filter.ProgramID = &v
	}
	if v := ctx.Query("state"); v != "" {
		filter.State = &v
	}

	requests, err := c.requestService.List(filter)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, requests)
}

// Get 获取申请详情
// @Summary      获取申请详情
// @Description  根据 ID 获取调课申请详情
// @Tags         申请管理
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id} [get]
// @Security     BearerAuth
func (c *ChangeRequestController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	request, err := c.requestService.Get(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	ctx.Header("ETag", fmt.Sprintf(`"%d"`, request.Version))
	Success(ctx, request)
}

// ChangeState 变更申请状态
// @Summary      变更申请状态
// @Description  校验转换规则后推进申请状态,If-Match 头携带期望版本号用于乐观并发控制
// @Tags         申请管理
// @Accept       json
// @Produce      json
// @Param        id       path   string          true  "申请 ID"
// @Param        If-Match header string          false "期望版本号"
// @Param        request  body   changeStateBody true  "目标状态"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /requests/{id}/state [post]
// @Security     BearerAuth
func (c *ChangeRequestController) ChangeState(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	var body changeStateBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	expectedVersion, ok := parseExpectedVersion(ctx)
	if !ok {
		return
	}

	opts := &service.ChangeStateOptions{
		ActorID:      ctx.GetString(auth.ContextUserID),
		ActorName:    ctx.GetString(auth.ContextUserName),
		Reason:       body.Reason,
		Observations: body.Observations,
	}

	result, err := c.requestService.ChangeState(ctx.Request.Context(), id, body.ToState, opts, expectedVersion)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	// 推送状态变更事件给订阅客户端
	if c.hub != nil {
		c.hub.NotifyStateChange(websocket.StateChangeEvent{
			RequestID: id,
			FromState: result.PreviousState,
			ToState:   result.NewState,
			ChangedBy: result.ChangedBy,
			Version:   result.Version,
			Timestamp: result.ChangedAt,
		})
	}

	ctx.Header("ETag", fmt.Sprintf(`"%d"`, result.Version))
	Success(ctx, result)
}

// GetCurrentState 获取申请的合并状态视图
// @Summary      获取申请当前状态
// @Description  返回申请的合并视图: 基础信息、当前状态、可执行操作、度量与标志
// @Tags         申请管理
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/current-state [get]
// @Security     BearerAuth
func (c *ChangeRequestController) GetCurrentState(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	view, err := c.requestService.GetCurrentStateInfo(id, auth.CallerPermissions(ctx))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, view)
}

// GetActions 获取申请的可执行转换
// @Summary      获取可执行转换
// @Description  返回当前状态下启用的出边转换列表
// @Tags         申请管理
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/actions [get]
// @Security     BearerAuth
func (c *ChangeRequestController) GetActions(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	actions, err := c.requestService.GetAvailableActions(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, actions)
}

// GetHistory 获取申请历史
// @Summary      获取申请历史
// @Description  返回申请的完整事件历史,按时间升序
// @Tags         申请历史
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/history [get]
// @Security     BearerAuth
func (c *ChangeRequestController) GetHistory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	history, err := c.requestService.GetRequestHistory(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, history)
}

// GetEnrichedHistory 获取带可读描述的申请历史
// @Summary      获取增强历史
// @Description  返回带人类可读描述的事件历史
// @Tags         申请历史
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/history/enriched [get]
// @Security     BearerAuth
func (c *ChangeRequestController) GetEnrichedHistory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	history, err := c.requestService.GetEnrichedHistory(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, history)
}

// GetHistoryStats 获取申请历史统计
// @Summary      获取历史统计
// @Description  返回事件计数、类型分布、操作人与首末事件时间
// @Tags         申请历史
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/history/stats [get]
// @Security     BearerAuth
func (c *ChangeRequestController) GetHistoryStats(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	stats, err := c.requestService.GetHistoryStats(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, stats)
}

// HasTransitions 检查申请是否发生过状态转换
// @Summary      检查是否有状态转换
// @Description  返回申请是否发生过至少一次状态变更
// @Tags         申请历史
// @Produce      json
// @Param        id path string true "申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /requests/{id}/history/has-transitions [get]
// @Security     BearerAuth
func (c *ChangeRequestController) HasTransitions(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	has, err := c.requestService.HasStateTransitions(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"has_transitions": has})
}

// GetGroupSchedule 获取课程组的周课表
// @Summary      获取课程组课表
// @Description  返回课程组的每周上课时段
// @Tags         课程组
// @Produce      json
// @Param        id path string true "课程组 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /groups/{id}/schedule [get]
// @Security     BearerAuth
func (c *ChangeRequestController) GetGroupSchedule(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateRequestID(ctx, id) {
		return
	}

	schedules, err := c.requestService.GetGroupSchedule(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, schedules)
}
