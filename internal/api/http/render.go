package http

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/maxwidget/internal/domain/notification"
	"github.com/GriffinCanCode/maxwidget/internal/domain/tab"
	"github.com/GriffinCanCode/maxwidget/internal/domain/widget"
	"github.com/GriffinCanCode/maxwidget/internal/shared/id"
)

// EntryView is a transcript entry with a display-ready HTML rendering
type EntryView struct {
	Role widget.Role `json:"role"`
	Text string      `json:"text"`
	HTML string      `json:"html"`
	At   time.Time   `json:"at"`
}

// WidgetView is widget.State with rendered entries
type WidgetView struct {
	Open       bool        `json:"open"`
	Sending    bool        `json:"sending"`
	Badge      bool        `json:"badge"`
	Transcript []EntryView `json:"transcript"`
}

// StateView is the tab snapshot served to the page
type StateView struct {
	TabID    id.TabID            `json:"tab_id"`
	LoggedIn bool                `json:"logged_in"`
	Widget   WidgetView          `json:"widget"`
	Banner   notification.Banner `json:"banner"`
	Session  tab.SessionView     `json:"session"`
}

// Renderer turns transcript text into HTML the page can insert as is.
// Assistant replies may carry basic formatting markup; user input is
// always escaped.
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer on the user-generated-content policy
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &Renderer{policy: policy}
}

// Render converts a tab view
func (r *Renderer) Render(v tab.View) StateView {
	entries := make([]EntryView, 0, len(v.Widget.Transcript))
	for _, e := range v.Widget.Transcript {
		entries = append(entries, EntryView{
			Role: e.Role,
			Text: e.Text,
			HTML: r.HTML(e),
			At:   e.At,
		})
	}

	return StateView{
		TabID:    v.TabID,
		LoggedIn: v.LoggedIn,
		Widget: WidgetView{
			Open:       v.Widget.Open,
			Sending:    v.Widget.Sending,
			Badge:      v.Widget.Badge,
			Transcript: entries,
		},
		Banner:  v.Banner,
		Session: v.Session,
	}
}

// HTML renders one entry
func (r *Renderer) HTML(e widget.Entry) string {
	text := e.Text
	if e.Role == widget.RoleUser {
		text = html.EscapeString(text)
	}
	text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", "<br>")
	return r.policy.Sanitize(text)
}
