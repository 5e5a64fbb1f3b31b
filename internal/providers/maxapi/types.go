package maxapi

// Endpoint paths relative to the API base URL
const (
	PathGreeting = "/max/greeting"
	PathChat     = "/max/web/chat"
)

// GreetingRequest asks for a personalized opening message
type GreetingRequest struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	SessionID string `json:"session_id"`
}

// GreetingResponse is the greeting endpoint payload. Only GreetingMessage is
// required by the widget; the rest is echoed for diagnostics.
type GreetingResponse struct {
	Status          string `json:"status,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	GreetingMessage string `json:"greeting_message,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
}

// ChatRequest is one user turn
type ChatRequest struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	UserName  string `json:"user_name,omitempty"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the assistant turn
type ChatResponse struct {
	Status            string `json:"status,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	Response          string `json:"response,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	PipelineCompleted bool   `json:"pipeline_completed,omitempty"`
	Timestamp         string `json:"timestamp,omitempty"`
}
