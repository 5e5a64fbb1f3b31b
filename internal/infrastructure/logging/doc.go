// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Domain packages take a plain *zap.Logger and name it after themselves
// (tab.session, tab.notification, tab.widget). Every tab logger carries a
// tab_id field; session events add session_id.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Sync()
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
