package widget

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/maxwidget/internal/providers/maxapi"
)

// Messages are the assistant texts synthesized when a turn fails
type Messages struct {
	Timeout       string `yaml:"timeout"`
	Unauthorized  string `yaml:"unauthorized"`
	RateLimited   string `yaml:"rate_limited"`
	Server        string `yaml:"server"`
	Status        string `yaml:"status"` // %d, if present, is the HTTP status code
	Network       string `yaml:"network"`
	EmptyResponse string `yaml:"empty_response"`
}

// DefaultMessages returns the built-in catalog
func DefaultMessages() Messages {
	return Messages{
		Timeout:       "I'm taking longer than usual to respond. Please try again, or try simplifying your question.",
		Unauthorized:  "Your session has expired. Please log in again to keep chatting.",
		RateLimited:   "You're sending messages too quickly. Please wait a moment and try again.",
		Server:        "I'm having trouble on my end right now. Please try again later.",
		Status:        "Sorry, the assistant service returned an error (status %d). Please try again.",
		Network:       "I'm unable to connect right now. Please check your internet connection and try again.",
		EmptyResponse: "No response from AI.",
	}
}

// LoadMessages reads a YAML catalog from path. Keys left out keep their
// built-in text.
func LoadMessages(path string) (Messages, error) {
	msgs := DefaultMessages()
	if path == "" {
		return msgs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return msgs, fmt.Errorf("read message catalog: %w", err)
	}
	var override Messages
	if err := yaml.Unmarshal(data, &override); err != nil {
		return msgs, fmt.Errorf("parse message catalog %s: %w", path, err)
	}
	return msgs.merge(override), nil
}

func (m Messages) merge(o Messages) Messages {
	pick := func(base, over string) string {
		if over != "" {
			return over
		}
		return base
	}
	return Messages{
		Timeout:       pick(m.Timeout, o.Timeout),
		Unauthorized:  pick(m.Unauthorized, o.Unauthorized),
		RateLimited:   pick(m.RateLimited, o.RateLimited),
		Server:        pick(m.Server, o.Server),
		Status:        pick(m.Status, o.Status),
		Network:       pick(m.Network, o.Network),
		EmptyResponse: pick(m.EmptyResponse, o.EmptyResponse),
	}
}

// ForError picks the text for a failed completion
func (m Messages) ForError(err error) string {
	apiErr := maxapi.Classify(err)
	if apiErr == nil {
		return m.EmptyResponse
	}

	switch apiErr.Kind {
	case maxapi.KindTimeout:
		return m.Timeout
	case maxapi.KindUnauthorized:
		return m.Unauthorized
	case maxapi.KindRateLimited:
		return m.RateLimited
	case maxapi.KindServer:
		return m.Server
	case maxapi.KindStatus:
		// catalogs may drop the code from the text
		if !strings.Contains(m.Status, "%d") {
			return m.Status
		}
		return fmt.Sprintf(m.Status, apiErr.Status)
	default:
		return m.Network
	}
}
