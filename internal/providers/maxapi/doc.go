// Package maxapi is the HTTP client for the M.A.X. assistant API.
//
// Two endpoints are used by the widget:
//   - POST /max/greeting  personalized opening message, short timeout
//   - POST /max/web/chat  one conversation turn, 60s timeout
//
// Calls carry the caller's bearer token, a request id and trace headers.
// They pass through a client-side rate limiter and a circuit breaker; auth
// and throttling answers do not count against the breaker. Failures are
// returned as *Error with a Kind the widget maps to user-facing text.
package maxapi
