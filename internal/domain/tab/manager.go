package tab

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/domain/notification"
	"github.com/GriffinCanCode/maxwidget/internal/domain/session"
	"github.com/GriffinCanCode/maxwidget/internal/domain/widget"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/storage"
	"github.com/GriffinCanCode/maxwidget/internal/providers/maxapi"
	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
	"github.com/GriffinCanCode/maxwidget/internal/shared/id"
)

var (
	// ErrTabNotFound is returned for an unknown tab id
	ErrTabNotFound = errors.New("tab: not found")
	// ErrTabClosed is returned by a tab that was unloaded or shut down
	ErrTabClosed = errors.New("tab: closed")
)

// Upstream is the per-user view of the M.A.X. API
type Upstream interface {
	notification.GreetingClient
	widget.CompletionClient
}

// UpstreamFactory binds the API to one tab's login state
type UpstreamFactory func(tokens auth.TokenSource) Upstream

// ForClient adapts a shared API client
func ForClient(c *maxapi.Client) UpstreamFactory {
	return func(tokens auth.TokenSource) Upstream {
		return c.ForUser(tokens)
	}
}

// Dependencies are shared by every tab
type Dependencies struct {
	Upstream     UpstreamFactory
	Storage      storage.Backend
	Session      session.Config
	Notification notification.Config
	Messages     widget.Messages
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
	Clock        clock.Clock
}

// Info describes a registered tab
type Info struct {
	ID        id.TabID  `json:"tab_id"`
	CreatedAt time.Time `json:"created_at"`
	LoggedIn  bool      `json:"logged_in"`
	Session   string    `json:"session"`
}

// Stats summarizes the registry
type Stats struct {
	Tabs           int `json:"tabs"`
	LoggedIn       int `json:"logged_in"`
	ActiveSessions int `json:"active_sessions"`
}

// Manager is the registry of live tabs
type Manager struct {
	mu   sync.RWMutex
	tabs map[id.TabID]*Tab // Protected by mu
	deps Dependencies
	log  *zap.Logger
}

// NewManager creates an empty registry
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory(0)
	}
	if deps.Upstream == nil {
		deps.Upstream = func(auth.TokenSource) Upstream { return unavailable{} }
	}
	if deps.Messages == (widget.Messages{}) {
		deps.Messages = widget.DefaultMessages()
	}
	if deps.Notification == (notification.Config{}) {
		deps.Notification = notification.DefaultConfig()
	}
	deps.Logger = deps.Logger.Named("tab")

	return &Manager{
		tabs: make(map[id.TabID]*Tab),
		deps: deps,
		log:  deps.Logger,
	}
}

// Open registers a new tab with an empty widget mounted
func (m *Manager) Open() *Tab {
	t := newTab(&m.deps)

	m.mu.Lock()
	m.tabs[t.ID] = t
	m.mu.Unlock()

	m.deps.Metrics.TabOpened()
	t.log.Debug("Tab opened")
	return t
}

// Get retrieves a tab by id
func (m *Manager) Get(tabID id.TabID) (*Tab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tabs[tabID]
	if !ok {
		return nil, ErrTabNotFound
	}
	return t, nil
}

// Reload simulates a page reload: the widget is rebuilt over the tab's
// storage so a live session is restored
func (m *Manager) Reload(tabID id.TabID) (*Tab, error) {
	t, err := m.Get(tabID)
	if err != nil {
		return nil, err
	}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Unload closes a tab for good: the session is ended and its storage dropped
func (m *Manager) Unload(tabID id.TabID) error {
	m.mu.Lock()
	t, ok := m.tabs[tabID]
	if ok {
		delete(m.tabs, tabID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrTabNotFound
	}

	t.shutdown(true)
	m.deps.Metrics.TabClosed()
	t.log.Debug("Tab unloaded")
	return nil
}

// List returns the live tabs ordered by creation
func (m *Manager) List() []Info {
	m.mu.RLock()
	tabs := make([]*Tab, 0, len(m.tabs))
	for _, t := range m.tabs {
		tabs = append(tabs, t)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(tabs))
	for _, t := range tabs {
		info := Info{ID: t.ID, CreatedAt: t.CreatedAt, LoggedIn: t.auth.LoggedIn()}
		if s, err := t.current(); err == nil {
			_, state := s.sessions.Snapshot()
			info.Session = state.String()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Stats returns registry statistics
func (m *Manager) Stats() Stats {
	var stats Stats
	for _, info := range m.List() {
		stats.Tabs++
		if info.LoggedIn {
			stats.LoggedIn++
		}
		if info.Session == session.StateActive.String() {
			stats.ActiveSessions++
		}
	}
	return stats
}

// Shutdown unmounts every tab. Sessions stay in storage, so a restarted host
// sharing the backend can restore them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	tabs := m.tabs
	m.tabs = make(map[id.TabID]*Tab)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tabs {
		wg.Add(1)
		go func(t *Tab) {
			defer wg.Done()
			t.shutdown(false)
			m.deps.Metrics.TabClosed()
		}(t)
	}
	wg.Wait()
	m.log.Info("Tabs shut down", zap.Int("count", len(tabs)))
}

// unavailable answers every call as a network failure, for hosts with no
// upstream configured
type unavailable struct{}

var errNoUpstream = errors.New("no upstream configured")

func (unavailable) Greeting(ctx context.Context, req maxapi.GreetingRequest) (*maxapi.GreetingResponse, error) {
	return nil, &maxapi.Error{Kind: maxapi.KindNetwork, Err: errNoUpstream}
}

func (unavailable) Chat(ctx context.Context, req maxapi.ChatRequest) (*maxapi.ChatResponse, error) {
	return nil, &maxapi.Error{Kind: maxapi.KindNetwork, Err: errNoUpstream}
}
