package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/providers/maxapi"
	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
)

var (
	// ErrBlankMessage rejects a send with no visible text
	ErrBlankMessage = errors.New("widget: message is blank")
	// ErrSendInFlight rejects a send while another is pending
	ErrSendInFlight = errors.New("widget: a message is already being sent")
	// ErrClosed rejects events after Close
	ErrClosed = errors.New("widget: closed")
)

// SessionManager is the part of session.Manager the widget drives
type SessionManager interface {
	GetSessionID() string
	UpdateActivity()
	EndSession()
	IsActive() bool
}

// Notifications is the part of notification.Controller the widget drives
type Notifications interface {
	Greeting() (message string, generation uint64, ok bool)
	Reset()
}

// CompletionClient performs one chat turn
type CompletionClient interface {
	Chat(ctx context.Context, req maxapi.ChatRequest) (*maxapi.ChatResponse, error)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMessages replaces the failure texts
func WithMessages(m Messages) Option {
	return func(o *Orchestrator) { o.messages = m }
}

// Orchestrator turns widget events into session, notification and
// transcript operations. It owns the transcript.
type Orchestrator struct {
	mu       sync.Mutex
	sessions SessionManager
	notes    Notifications
	client   CompletionClient
	users    auth.Resolver
	clock    clock.Clock
	log      *zap.Logger
	messages Messages

	open       bool
	sending    bool
	closed     bool
	transcript []Entry

	greetedThisOpen bool
	deliveredGen    uint64
	// epoch changes on clear and close; replies from an older epoch are dropped
	epoch uint64
}

// NewOrchestrator wires the widget to its collaborators
func NewOrchestrator(sessions SessionManager, notes Notifications, client CompletionClient, users auth.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		notes:    notes,
		client:   client,
		users:    users,
		clock:    clock.New(),
		log:      zap.NewNop(),
		messages: DefaultMessages(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("widget")
	return o
}

// OnOpen opens the widget. An empty transcript is seeded with a greeting
// that has not been delivered yet; reopening with history counts as activity.
func (o *Orchestrator) OnOpen() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.open = true

	activity := len(o.transcript) > 0
	if len(o.transcript) == 0 && !o.greetedThisOpen {
		if msg, gen, ok := o.notes.Greeting(); ok && gen != o.deliveredGen {
			o.appendLocked(RoleAssistant, msg)
			o.deliveredGen = gen
			o.greetedThisOpen = true
			activity = true
		}
	}
	o.mu.Unlock()

	if activity {
		o.sessions.UpdateActivity()
	}
}

// OnClose closes the widget
func (o *Orchestrator) OnClose() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.open = false
	o.greetedThisOpen = false
}

// OnSend sends one user turn. Blank input and a send while another is in
// flight are rejected without touching the transcript. Every other outcome,
// including transport failures, ends as an assistant entry and returns nil.
func (o *Orchestrator) OnSend(ctx context.Context, text string) error {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return ErrBlankMessage
	}

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return ErrClosed
	case o.sending:
		o.mu.Unlock()
		return ErrSendInFlight
	}
	o.sending = true
	o.appendLocked(RoleUser, msg)
	epoch := o.epoch
	o.mu.Unlock()

	sessionID := o.sessions.GetSessionID()
	o.sessions.UpdateActivity()

	user, err := o.users.CurrentUser(ctx)
	if err != nil {
		user = nil
	}

	resp, err := o.client.Chat(ctx, maxapi.ChatRequest{
		UserID:    user.UserID(),
		Message:   msg,
		UserName:  user.DisplayName(),
		SessionID: sessionID,
	})

	reply := o.replyText(resp, err)
	if err != nil {
		o.log.Warn("Chat turn failed",
			zap.String("session_id", sessionID),
			zap.String("kind", string(maxapi.Classify(err).Kind)),
			zap.Error(err))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.sending = false
	if epoch != o.epoch || o.closed {
		o.log.Debug("Dropping reply for cleared transcript", zap.String("session_id", sessionID))
		return nil
	}
	o.appendLocked(RoleAssistant, reply)
	return nil
}

func (o *Orchestrator) replyText(resp *maxapi.ChatResponse, err error) string {
	if err != nil {
		return o.messages.ForError(err)
	}
	if resp == nil || strings.TrimSpace(resp.Response) == "" {
		return o.messages.EmptyResponse
	}
	return resp.Response
}

// OnClear ends the session before anything else can ask for an id, then
// empties the transcript and resets the greeting so the next open can
// show a fresh one
func (o *Orchestrator) OnClear() {
	if o.sessions.IsActive() {
		o.sessions.EndSession()
	}

	o.mu.Lock()
	o.transcript = nil
	o.epoch++
	o.greetedThisOpen = false
	o.mu.Unlock()

	o.notes.Reset()
}

// Close unmounts the widget; in-flight replies are dropped when they resolve
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.epoch++
}

// Snapshot returns the view state
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	transcript := make([]Entry, len(o.transcript))
	copy(transcript, o.transcript)

	badge := false
	if !o.open {
		_, gen, ok := o.notes.Greeting()
		badge = ok && gen != o.deliveredGen
	}

	return State{
		Open:       o.open,
		Sending:    o.sending,
		Badge:      badge,
		Transcript: transcript,
	}
}

func (o *Orchestrator) appendLocked(role Role, text string) {
	o.transcript = append(o.transcript, Entry{Role: role, Text: text, At: o.clock.Now()})
}
