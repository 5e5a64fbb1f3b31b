package notification

// Phase of the greeting notification
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseShown
	PhaseDismissed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseShown:
		return "shown"
	case PhaseDismissed:
		return "dismissed"
	default:
		return "idle"
	}
}

// MarshalText renders the phase by name in JSON views
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Banner is what the notification view renders
type Banner struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message,omitempty"`
	// Mounted stays true through the fade-out after a dismissal
	Mounted bool `json:"mounted"`
}
