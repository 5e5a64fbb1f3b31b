// Package main is the entry point for the M.A.X. widget host.
//
// The host keeps the chat widget state of every browser tab that embeds
// it and talks to the M.A.X. API on the page's behalf:
//
//	Page (polls /tabs/:id) → widget host → M.A.X. API (greeting, chat)
//
// Configuration:
//   - Environment variables, optionally from a .env file
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -api https://max.example.com -storage redis
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
