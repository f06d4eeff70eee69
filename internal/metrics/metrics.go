package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 调课申请创建数
	requestsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "change_requests_created_total",
			Help: "Total number of change requests created",
		},
	)

	// 状态变更数,按目标状态区分
	stateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_changes_total",
			Help: "Total number of successful state transitions",
		},
		[]string{"to_state"},
	)

	// 乐观并发冲突数(条件写入未命中)
	concurrentConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "concurrent_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// 申请状态分布
	requestsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "change_requests_by_state",
			Help: "Number of change requests by state",
		},
		[]string{"state"},
	)
)

var once sync.Once

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(requestsCreatedTotal)
	prometheus.MustRegister(stateChangesTotal)
	prometheus.MustRegister(concurrentConflictsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(requestsByState)

	// 注册 Go 运行时指标(只注册一次,已注册则忽略错误)
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRequestCreated 记录申请创建
func RecordRequestCreated() {
	requestsCreatedTotal.Inc()
}

// RecordStateChange 记录一次成功的状态变更
func RecordStateChange(toState string) {
	stateChangesTotal.WithLabelValues(toState).Inc()
}

// RecordConcurrentConflict 记录一次乐观并发冲突
func RecordConcurrentConflict() {
	concurrentConflictsTotal.Inc()
}

// UpdateRequestsByState 更新申请状态分布指标
func UpdateRequestsByState(state string, count float64) {
	requestsByState.WithLabelValues(state).Set(count)
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.InUse))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	return nil
}
