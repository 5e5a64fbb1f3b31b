package session

import "time"

// Record is one conversation session
type Record struct {
	SessionID        string    `json:"session_id"`
	StartTime        time.Time `json:"start_time"`
	LastActivityTime time.Time `json:"last_activity_time"`
	IsActive         bool      `json:"is_active"`
}

// persisted is the storage form under the session key
type persisted struct {
	SessionID        string `json:"sessionId"`
	StartTime        string `json:"startTime"`
	LastActivityTime string `json:"lastActivityTime"`
}

// State of the manager's lifecycle
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "uninitialized"
	}
}

// EndReason says why a session ended
type EndReason string

const (
	ReasonExplicit EndReason = "explicit"
	ReasonTimeout  EndReason = "timeout"
	ReasonUnload   EndReason = "unload"
	ReasonReplaced EndReason = "replaced"
)
