// Package middleware provides the gin middleware stack of the widget host.
//
// Middleware stack includes:
//   - RequestID: X-Request-ID propagation
//   - Logger: zap access log
//   - CORS: Cross-origin resource sharing for the page origins
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
