package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/service"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/utils"
)

// TransitionRuleController 转换规则控制器
type TransitionRuleController struct {
	registry service.TransitionRegistry
}

// NewTransitionRuleController 创建转换规则控制器
func NewTransitionRuleController(registry service.TransitionRegistry) *TransitionRuleController {
	return &TransitionRuleController{registry: registry}
}

// createRuleBody 创建转换规则请求体
type createRuleBody struct {
	FromState           string   `json:"from_state" example:"PENDING" binding:"required"`
	ToState             string   `json:"to_state" example:"IN_REVIEW" binding:"required"`
	Description         string   `json:"description" example:"coordinator starts reviewing"`
	RequiresReason      bool     `json:"requires_reason"`
	RequiredPermissions []string `json:"required_permissions"`
	Active              *bool    `json:"active"`
}

// Create 创建转换规则
// @Summary      创建转换规则
// @Description  注册一条新的状态转换边并刷新规则缓存
// @Tags         转换规则
// @Accept       json
// @Produce      json
// @Param        request body createRuleBody true "规则定义"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /transition-rules [post]
// @Security     BearerAuth
func (c *TransitionRuleController) Create(ctx *gin.Context) {
	var body createRuleBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := utils.ValidateStateName(body.FromState); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid from_state", err.Error())
		return
	}
	if err := utils.ValidateStateName(body.ToState); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid to_state", err.Error())
		return
	}

	rule, err := c.registry.CreateTransition(body.FromState, body.ToState, &service.CreateTransitionOptions{
		Description:         body.Description,
		RequiresReason:      body.RequiresReason,
		RequiredPermissions: body.RequiredPermissions,
		Active:              body.Active,
	})
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Created(ctx, rule)
}

// List 列出所有转换规则
// @Summary      列出转换规则
// @Description  返回所有转换规则,包含已禁用的
// @Tags         转换规则
// @Produce      json
// @Success      200  {object}  Response
// @Router       /transition-rules [get]
// @Security     BearerAuth
func (c *TransitionRuleController) List(ctx *gin.Context) {
	rules, err := c.registry.ListRules()
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, rules)
}

// AvailableFrom 查询某状态的可用转换
// @Summary      查询可用转换
// @Description  返回给定状态下启用的出边转换
// @Tags         转换规则
// @Produce      json
// @Param        state path string true "源状态"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /transition-rules/from/{state} [get]
// @Security     BearerAuth
func (c *TransitionRuleController) AvailableFrom(ctx *gin.Context) {
	state := ctx.Param("state")
	if err := utils.ValidateStateName(state); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid state", err.Error())
		return
	}

	Success(ctx, c.registry.GetAvailableTransitions(state))
}

// Refresh 重新加载规则缓存
// @Summary      刷新规则缓存
// @Description  从数据库重新加载转换规则并原子替换缓存快照
// @Tags         转换规则
// @Produce      json
// @Success      200  {object}  Response
// @Failure      500  {object}  ErrorResponse
// @Router       /transition-rules/refresh [post]
// @Security     BearerAuth
func (c *TransitionRuleController) Refresh(ctx *gin.Context) {
	if err := c.registry.Refresh(); err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"refreshed": true})
}
