package widget

import "time"

// Role of a transcript entry
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one line of the conversation
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// State is the widget view state
type State struct {
	Open       bool    `json:"open"`
	Sending    bool    `json:"sending"`
	Badge      bool    `json:"badge"`
	Transcript []Entry `json:"transcript"`
}
