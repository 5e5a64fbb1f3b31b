// Package notification drives the greeting banner of one tab.
//
// After a login the controller fetches a personalized greeting from the
// M.A.X. API once, shows it after a short delay, hides it after AutoHide
// and keeps it mounted through a fade-out. Every transition is driven by
// a single timer; replacing or cancelling it bumps a generation counter
// so a stale callback does nothing.
//
// Phases:
//
//	idle -> loading -> ready -> shown -> dismissed
//	  ^        |
//	  +--------+ fetch failed
//
// Reset (logout, clear) returns to idle and allows the next Refresh to
// fetch again. A fetch that resolves after a Reset or Close is ignored.
package notification
