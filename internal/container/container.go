package container

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/auth"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/config"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/database"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/integration"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/repository"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/service"
	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/websocket"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、仓储、服务与外部协作方
type Container struct {
	db                *gorm.DB
	registry          service.TransitionRegistry
	audit             service.AuditTrail
	stateMgr          service.StateManager
	requestService    service.ChangeRequestService
	hub               *websocket.Hub
	keycloakValidator *auth.KeycloakTokenValidator
	logger            *logrus.Logger
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化仓储层
	requestRepo := repository.NewChangeRequestRepository(db)
	ruleRepo := repository.NewTransitionRuleRepository(db)
	eventRepo := repository.NewHistoryEventRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	// 3. 初始化规则注册表 (启动时预热缓存)
	registry, err := service.NewTransitionRegistry(ruleRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transition registry: %w", err)
	}

	// 4. 初始化审计日志与状态引擎
	audit := service.NewAuditTrail(eventRepo)
	stateMgr := service.NewStateManager(requestRepo, registry, audit, logger)
	projector := service.NewStateProjector(requestRepo, studentRepo, registry, audit)

	// 5. 初始化外部协作方
	validator := integration.NewScheduleValidator(groupRepo, enrollmentRepo)
	mutator := integration.NewEnrollmentMutator(db)
	router := integration.NewRequestRouter(programRepo, logger)

	// 6. 初始化编排服务
	requestService := service.NewChangeRequestService(
		requestRepo, studentRepo, groupRepo,
		stateMgr, projector, audit,
		validator, mutator, router,
		logger,
	)

	// 7. 初始化 WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// 8. 初始化 Keycloak Token 验证器 (未配置 issuer 时跳过认证)
	var keycloakValidator *auth.KeycloakTokenValidator
	if cfg.Keycloak.Issuer != "" {
		keycloakValidator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer)
	}

	return &Container{
		db:                db,
		registry:          registry,
		audit:             audit,
		stateMgr:          stateMgr,
		requestService:    requestService,
		hub:               hub,
		keycloakValidator: keycloakValidator,
		logger:            logger,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// TransitionRegistry 获取转换规则注册表
func (c *Container) TransitionRegistry() service.TransitionRegistry {
	return c.registry
}

// AuditTrail 获取审计日志服务
func (c *Container) AuditTrail() service.AuditTrail {
	return c.audit
}

// StateManager 获取状态管理器
func (c *Container) StateManager() service.StateManager {
	return c.stateMgr
}

// RequestService 获取调课申请服务
func (c *Container) RequestService() service.ChangeRequestService {
	return c.requestService
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// KeycloakValidator 获取 Keycloak Token 验证器
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator {
	return c.keycloakValidator
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}
