// Package config provides 12-factor configuration management for the widget host.
//
// Configuration is loaded from environment variables with sensible defaults.
// A .env file is read first when present, and CLI flags can override the
// server address, API URL and log mode.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - API: M.A.X. API base URL, per-call timeouts, outbound rate limit
//   - Session: inactivity timeout, background timeout, storage key
//   - Notification: greeting show delay, auto-hide and fade-out
//   - Storage: tab storage driver (memory, file, redis)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - CORS: allowed origins
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Address())
//
// Environment Variables:
//   - PORT, HOST, MAX_API_URL, MAX_GREETING_TIMEOUT, MAX_CHAT_TIMEOUT, MAX_API_RPS
//   - SESSION_TIMEOUT, SESSION_BACKGROUND_TIMEOUT, SESSION_STORAGE_KEY
//   - GREETING_SHOW_DELAY, GREETING_AUTO_HIDE, GREETING_FADE_OUT
//   - STORAGE_DRIVER, STORAGE_DIR, REDIS_URL, STORAGE_TTL
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ALLOWED_ORIGINS, MESSAGES_FILE
package config
