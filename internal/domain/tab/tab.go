package tab

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/domain/notification"
	"github.com/GriffinCanCode/maxwidget/internal/domain/session"
	"github.com/GriffinCanCode/maxwidget/internal/domain/widget"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/storage"
	"github.com/GriffinCanCode/maxwidget/internal/shared/id"
)

// SessionView is the session part of a tab snapshot
type SessionView struct {
	State           string `json:"state"`
	SessionID       string `json:"session_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Hidden          bool   `json:"hidden"`
}

// View is everything the page renders for one tab
type View struct {
	TabID    id.TabID            `json:"tab_id"`
	LoggedIn bool                `json:"logged_in"`
	Widget   widget.State        `json:"widget"`
	Banner   notification.Banner `json:"banner"`
	Session  SessionView         `json:"session"`
}

// stack is the per-page-load part of a tab. A reload replaces it.
type stack struct {
	sessions *session.Manager
	notes    *notification.Controller
	widget   *widget.Orchestrator
}

// Tab is one browser tab: its login state, its tab-scoped storage and the
// widget stack mounted on the current page
type Tab struct {
	ID        id.TabID
	CreatedAt time.Time

	deps  *Dependencies
	log   *zap.Logger
	auth  *auth.Store
	store storage.Store

	mu     sync.RWMutex
	stack  *stack
	closed bool

	// background greeting fetches; cancelled and awaited on close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newTab(deps *Dependencies) *Tab {
	tabID := id.NewTabID()
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tab{
		ID:        tabID,
		CreatedAt: deps.Clock.Now(),
		deps:      deps,
		log:       deps.Logger.With(zap.String("tab_id", tabID.String())),
		auth:      auth.NewStore(),
		store:     deps.Storage.Scope(tabID.String()),
		ctx:       ctx,
		cancel:    cancel,
	}
	t.stack = t.mount()
	return t
}

// mount builds a fresh widget stack over the tab's storage. A live session
// left by a previous page load is restored here.
func (t *Tab) mount() *stack {
	d := t.deps
	sessions := session.NewManager(t.store, d.Session,
		session.WithClock(d.Clock),
		session.WithLogger(t.log),
		session.WithStartObserver(func(rec session.Record, restored bool) {
			d.Metrics.SessionStarted(restored)
			t.log.Info("Session started",
				zap.String("session_id", rec.SessionID),
				zap.Bool("restored", restored))
		}),
		session.WithEndObserver(func(rec session.Record, reason session.EndReason) {
			d.Metrics.SessionEnded(string(reason))
			t.log.Info("Session ended",
				zap.String("session_id", rec.SessionID),
				zap.String("reason", string(reason)))
		}),
	)

	upstream := d.Upstream(t.auth)
	notes := notification.NewController(upstream, t.auth, sessions, d.Notification,
		notification.WithClock(d.Clock),
		notification.WithLogger(t.log),
	)
	w := widget.NewOrchestrator(sessions, notes, upstream, t.auth,
		widget.WithClock(d.Clock),
		widget.WithLogger(t.log),
		widget.WithMessages(d.Messages),
	)
	return &stack{sessions: sessions, notes: notes, widget: w}
}

// unmount tears the page down: timers stop and storage survives
func (t *Tab) unmount(s *stack) {
	s.widget.Close()
	s.notes.Close()
	if s.sessions.IsActive() {
		t.deps.Metrics.SessionDetached()
	}
	s.sessions.Close()
}

func (t *Tab) current() (*stack, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrTabClosed
	}
	return t.stack, nil
}

// background runs fn on the tab's lifetime context
func (t *Tab) background(fn func(ctx context.Context)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.ctx)
	}()
}

// Login signs a user in. The first login fetches the greeting in the background.
func (t *Tab) Login(token string, user auth.Identity) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	if !t.auth.Login(token, user) {
		return nil
	}
	t.log.Info("User logged in", zap.String("user_id", user.UserID()))
	t.background(func(ctx context.Context) {
		s.notes.OnLoginStateChange(ctx, true)
	})
	return nil
}

// Logout signs the user out and resets the greeting
func (t *Tab) Logout() error {
	s, err := t.current()
	if err != nil {
		return err
	}
	if t.auth.Logout() {
		t.log.Info("User logged out")
	}
	s.notes.OnLoginStateChange(t.ctx, false)
	return nil
}

// SetHidden reports a page visibility change
func (t *Tab) SetHidden(hidden bool) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.sessions.SetHidden(hidden)
	return nil
}

// Open opens the widget
func (t *Tab) Open() error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.widget.OnOpen()
	return nil
}

// Close closes the widget
func (t *Tab) Close() error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.widget.OnClose()
	return nil
}

// Send sends one message and blocks until the reply is in the transcript
func (t *Tab) Send(ctx context.Context, message string) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	return s.widget.OnSend(ctx, message)
}

// Clear clears the conversation
func (t *Tab) Clear() error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.widget.OnClear()
	return nil
}

// ClickNotification opens the widget from the banner
func (t *Tab) ClickNotification() error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.notes.Click(s.widget.OnOpen)
	return nil
}

// DismissNotification hides the banner
func (t *Tab) DismissNotification() error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.notes.Dismiss()
	return nil
}

// View returns the current snapshot. A greeting that is due is fetched in
// the background and shows up on a later poll.
func (t *Tab) View() (View, error) {
	s, err := t.current()
	if err != nil {
		return View{}, err
	}

	if s.notes.NeedsFetch() {
		t.background(func(ctx context.Context) {
			s.notes.Refresh(ctx)
		})
	}

	rec, state := s.sessions.Snapshot()
	sv := SessionView{
		State:           state.String(),
		DurationMinutes: s.sessions.SessionDurationMinutes(),
		Hidden:          s.sessions.Hidden(),
	}
	if state == session.StateActive {
		sv.SessionID = rec.SessionID
	}

	return View{
		TabID:    t.ID,
		LoggedIn: t.auth.LoggedIn(),
		Widget:   s.widget.Snapshot(),
		Banner:   s.notes.Banner(),
		Session:  sv,
	}, nil
}

// reload swaps in a fresh stack over the same storage and login state
func (t *Tab) reload() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTabClosed
	}
	t.unmount(t.stack)
	t.stack = t.mount()
	s := t.stack
	t.mu.Unlock()

	t.log.Info("Tab reloaded")

	if t.auth.LoggedIn() {
		t.background(func(ctx context.Context) {
			s.notes.OnLoginStateChange(ctx, true)
		})
	}
	return nil
}

// shutdown unmounts the page. With unload set the session is ended first
// and the tab's storage dropped.
func (t *Tab) shutdown(unload bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	s := t.stack
	t.mu.Unlock()

	t.cancel()
	if unload {
		s.sessions.Unload()
	}
	t.unmount(s)
	t.wg.Wait()

	if unload {
		if err := t.deps.Storage.Drop(t.ID.String()); err != nil {
			t.log.Warn("Failed to drop tab storage", zap.Error(err))
		}
	}
}
