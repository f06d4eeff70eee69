package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/auth"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/config"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/service"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/websocket"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config         *config.Config
	DB             *gorm.DB
	RequestService service.ChangeRequestService
	Registry       service.TransitionRegistry
	Hub            *websocket.Hub
	Validator      *auth.KeycloakTokenValidator
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	if deps.Config != nil && config.IsProduction(deps.Config) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(ErrorHandlerMiddleware())

	if deps.Config != nil {
		router.Use(CORSMiddleware(deps.Config.CORS.AllowedOrigins))
		if deps.Config.Tracing.Enabled {
			router.Use(TracingMiddleware())
		}
	}

	// 健康检查
	healthController := NewHealthController(deps.DB)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由: 状态变更事件订阅
	if deps.Hub != nil {
		router.GET("/ws/requests", websocket.RequestEventsHandler(deps.Hub, deps.Validator))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(100, 200))

	// Keycloak 未配置时 (开发环境) 不挂认证中间件,权限标签为空集
	if deps.Validator != nil {
		v1.Use(auth.KeycloakAuthMiddleware(deps.Validator))
	}

	requestController := NewChangeRequestController(deps.RequestService, deps.Hub)
	ruleController := NewTransitionRuleController(deps.Registry)

	{
		// 调课申请路由
		requests := v1.Group("/requests")
		{
			requests.POST("", requestController.Create)
			requests.GET("", requestController.List)
			requests.GET("/:id", requestController.Get)
			requests.POST("/:id/state", requestController.ChangeState)
			requests.GET("/:id/current-state", requestController.GetCurrentState)
			requests.GET("/:id/actions", requestController.GetActions)
			requests.GET("/:id/history", requestController.GetHistory)
			requests.GET("/:id/history/enriched", requestController.GetEnrichedHistory)
			requests.GET("/:id/history/stats", requestController.GetHistoryStats)
			requests.GET("/:id/history/has-transitions", requestController.HasTransitions)
		}

		// 课程组路由
		groups := v1.Group("/groups")
		{
			groups.GET("/:id/schedule", requestController.GetGroupSchedule)
		}

		// 转换规则路由
		rules := v1.Group("/transition-rules")
		{
			rules.POST("", ruleController.Create)
			rules.GET("", ruleController.List)
			rules.GET("/from/:state", ruleController.AvailableFrom)
			rules.POST("/refresh", ruleController.Refresh)
		}
	}

	// 未匹配路由返回 JSON 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", c.Request.URL.Path)
	})

	return router
}
