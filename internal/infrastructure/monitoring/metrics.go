package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maxwidget"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tab metrics
	TabsOpen  prometheus.Gauge
	TabsTotal prometheus.Counter

	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsRestored prometheus.Counter
	SessionsEnded    *prometheus.CounterVec

	// Upstream metrics
	GreetingFetches  *prometheus.CounterVec
	ChatRequests     *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	startTime time.Time
	snapshot  Snapshot
	mu        sync.RWMutex
}

// Snapshot holds running totals for the JSON health endpoint
type Snapshot struct {
	TotalRequests  int64 `json:"total_requests"`
	TotalErrors    int64 `json:"total_errors"`
	TabsOpen       int64 `json:"tabs_open"`
	SessionsActive int64 `json:"sessions_active"`
	ChatRequests   int64 `json:"chat_requests"`
	ChatFailures   int64 `json:"chat_failures"`
}

// NewMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes its own registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the widget host",
		},
		[]string{"method", "route", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	m.TabsOpen = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tabs_open",
		Help:      "Number of registered browser tabs",
	})
	m.TabsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tabs_total",
		Help:      "Total number of tabs registered",
	})

	m.SessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of active conversation sessions",
	})
	m.SessionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Total number of conversation sessions created",
	})
	m.SessionsRestored = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_restored_total",
		Help:      "Total number of sessions restored after a reload",
	})
	m.SessionsEnded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions ended, by reason",
		},
		[]string{"reason"},
	)

	m.GreetingFetches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "greeting_fetches_total",
			Help:      "Greeting fetches, by outcome",
		},
		[]string{"outcome"},
	)
	m.ChatRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat completions, by outcome",
		},
		[]string{"outcome"},
	)
	m.UpstreamDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "M.A.X. API call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"endpoint"},
	)
	m.BreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Widget host uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// TabOpened counts a registered tab
func (m *Metrics) TabOpened() {
	if m == nil {
		return
	}
	m.TabsOpen.Inc()
	m.TabsTotal.Inc()
	m.mu.Lock()
	m.snapshot.TabsOpen++
	m.mu.Unlock()
}

// TabClosed counts a removed tab
func (m *Metrics) TabClosed() {
	if m == nil {
		return
	}
	m.TabsOpen.Dec()
	m.mu.Lock()
	m.snapshot.TabsOpen--
	m.mu.Unlock()
}

// SessionStarted counts a new or restored session
func (m *Metrics) SessionStarted(restored bool) {
	if m == nil {
		return
	}
	if restored {
		m.SessionsRestored.Inc()
	} else {
		m.SessionsStarted.Inc()
	}
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.SessionsActive++
	m.mu.Unlock()
}

// SessionEnded counts an ended session
func (m *Metrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.SessionsActive--
	m.mu.Unlock()
}

// SessionDetached drops a session from the active gauge without ending it,
// used when a tab unmounts and leaves its record for a later restore
func (m *Metrics) SessionDetached() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.SessionsActive--
	m.mu.Unlock()
}

// RecordGreeting records a greeting fetch outcome
func (m *Metrics) RecordGreeting(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GreetingFetches.WithLabelValues(outcome).Inc()
	m.UpstreamDuration.WithLabelValues("greeting").Observe(duration.Seconds())
}

// RecordChat records a chat completion outcome
func (m *Metrics) RecordChat(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
	m.UpstreamDuration.WithLabelValues("chat").Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.ChatRequests++
	if outcome != OutcomeOK {
		m.snapshot.ChatFailures++
	}
	m.mu.Unlock()
}

// SetBreakerState publishes a breaker state
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Snapshot returns the running totals
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Uptime returns time since NewMetrics
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}
