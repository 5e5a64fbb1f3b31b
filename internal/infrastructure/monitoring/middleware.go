package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK labels a successful upstream call
const OutcomeOK = "ok"

// Middleware records request counts and latency per route template
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Handler serves the Prometheus exposition for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Timer measures one upstream call
type Timer struct {
	start  time.Time
	record func(outcome string, d time.Duration)
}

// NewChatTimer starts timing a chat completion
func NewChatTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), record: metrics.RecordChat}
}

// NewGreetingTimer starts timing a greeting fetch
func NewGreetingTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), record: metrics.RecordGreeting}
}

// Stop records the outcome and elapsed time
func (t *Timer) Stop(outcome string) {
	t.record(outcome, time.Since(t.start))
}
