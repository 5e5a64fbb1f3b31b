/*
Package monitoring provides Prometheus metrics for the widget host.

# Collectors

- HTTP requests by route template and status, with latency
- Registered tabs (gauge and total)
- Conversation sessions: active, started, restored, ended by reason
- Greeting fetches and chat completions by outcome, upstream latency
- Circuit breaker state for the M.A.X. API

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(prometheus.DefaultGatherer)))

	timer := monitoring.NewChatTimer(metrics)
	defer timer.Stop(monitoring.OutcomeOK)

Every recording method accepts a nil *Metrics, so components can be built
without metrics in tests.
*/
package monitoring
