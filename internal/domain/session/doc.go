// Package session manages the conversation session of one browser tab.
//
// A session is a client-side conversation identity with a bounded inactivity
// lifetime. The M.A.X. API uses its id to thread the turns of one conversation.
//
// Components:
//   - Manager: owns the record, the single inactivity timer and persistence
//   - Record: id, start time, last activity time, active flag
//   - Storage: tab-scoped key-value store, written only by the Manager
//
// Lifecycle:
//
//	uninitialized -> active -> ended
//	                  ^  |
//	                  +--+ UpdateActivity re-arms the timer
//
// An ended manager becomes active again only through GetSessionID.
//
// Persistence:
//   - Key "maxChatSession" holds {sessionId, startTime, lastActivityTime}
//   - NewManager restores a record whose last activity is within the timeout
//     and arms the timer for the remaining time; stale or corrupt records
//     are removed
//   - Close keeps the record so a reload restores it; EndSession removes it
//
// Backgrounding:
//   - SetHidden(true) re-arms an active session for BackgroundTimeout
//   - SetHidden(false) counts as activity and restores the full window
//
// Example Usage:
//
//	mgr := session.NewManager(store, session.DefaultConfig(), session.WithLogger(log))
//	sid := mgr.GetSessionID()
//	mgr.UpdateActivity()
//	mgr.EndSession()
package session
