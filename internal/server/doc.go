// Package server wires the widget host together.
//
// NewServer builds every component from a config.Config:
//   - tab storage (memory, file or redis)
//   - the M.A.X. API client with its breaker, tracer and metrics
//   - the tab registry that mounts one session manager, notification
//     controller and widget orchestrator per browser tab
//   - the gin router with the middleware stack and /metrics
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Build the server
//  3. Run until a signal arrives
//  4. Shutdown: stop the listener, unmount every tab, flush spans and
//     close storage
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, log)
//	if err != nil {
//	    log.Fatal("build server", zap.Error(err))
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
