package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 控制面指标
type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	OperationRuns   *prometheus.CounterVec
	LockWait        *prometheus.HistogramVec
	TenantPools     prometheus.Gauge
	AuditDropped    prometheus.Counter
	RateLimited     *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default 返回全局指标实例
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = NewMetrics("gmdl", prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics 创建并注册指标；重复注册时复用已注册的收集器
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OperationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tenant",
				Name:      "operation_runs_total",
				Help:      "Tenant operation runs by action and final status",
			},
			[]string{"action", "status"},
		),
		LockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tenant",
				Name:      "lock_wait_seconds",
				Help:      "Time spent acquiring tenant operation locks",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"result"},
		),
		TenantPools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "connection_pools",
			Help:      "Number of cached tenant database pools",
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Audit records dropped because the queue was full",
		}),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "guard_rejections_total",
				Help:      "Requests rejected by tenant, domain, role or billing guards",
			},
			[]string{"code"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tenant",
				Name:      "operation_run_duration_seconds",
				Help:      "Duration of finished tenant operation runs",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"action", "status"},
		),
	}

	m.RequestCount = register(reg, m.RequestCount)
	m.RequestDuration = register(reg, m.RequestDuration)
	m.OperationRuns = register(reg, m.OperationRuns)
	m.LockWait = register(reg, m.LockWait)
	m.TenantPools = register(reg, m.TenantPools)
	m.AuditDropped = register(reg, m.AuditDropped)
	m.RateLimited = register(reg, m.RateLimited)
	m.Rejections = register(reg, m.Rejections)
	m.RunDuration = register(reg, m.RunDuration)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler /metrics 端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
