package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frenchline/adminapi/internal/version"
)

type ServerMetrics struct {
	reg            *prometheus.Registry
	handler        http.Handler
	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal   *prometheus.CounterVec
	ratelimitCapacityTotal prometheus.Counter

	authFailuresTotal       *prometheus.CounterVec
	validationFailuresTotal *prometheus.CounterVec

	cacheOpsTotal *prometheus.CounterVec

	storeQueryDur *prometheus.HistogramVec

	errorsTotal *prometheus.CounterVec

	profilingActive prometheus.Gauge
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by a rate limiter, by limiter (flood or route window)",
		}, []string{"limiter"}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times the flood limiter tracking capacity was reached",
		}),
		authFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total requests rejected at the auth gate, by reason",
		}, []string{"reason"}),
		validationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total requests rejected at the validation gate, by route",
		}, []string{"route"}),
		cacheOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Cache operations by result (hit, miss, error, set, invalidate)",
		}, []string{"result"}),
		storeQueryDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Store query latency by operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.authFailuresTotal,
		m.validationFailuresTotal,
		m.cacheOpsTotal,
		m.storeQueryDur,
		m.errorsTotal,
		m.profilingActive,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied(limiter string) {
	m.ratelimitDeniedTotal.WithLabelValues(limiter).Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) IncAuthFailure(reason string) {
	m.authFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncValidationFailure(route string) {
	m.validationFailuresTotal.WithLabelValues(route).Inc()
}

func (m *ServerMetrics) IncCacheOp(result string) {
	m.cacheOpsTotal.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) ObserveStoreQuery(op string, seconds float64) {
	m.storeQueryDur.WithLabelValues(op).Observe(seconds)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}
