package tab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

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

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

type fakeUpstream struct {
	mu         sync.Mutex
	greetings  []string
	greetCalls int
	chats      []maxapi.ChatRequest
}

func (f *fakeUpstream) Greeting(ctx context.Context, req maxapi.GreetingRequest) (*maxapi.GreetingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.greetCalls++
	if len(f.greetings) == 0 {
		return nil, &maxapi.Error{Kind: maxapi.KindServer, Status: 500}
	}
	msg := f.greetings[0]
	f.greetings = f.greetings[1:]
	return &maxapi.GreetingResponse{Status: "success", UserID: req.UserID, GreetingMessage: msg, SessionID: req.SessionID}, nil
}

func (f *fakeUpstream) Chat(ctx context.Context, req maxapi.ChatRequest) (*maxapi.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	return &maxapi.ChatResponse{Status: "success", Response: "echo: " + req.Message, SessionID: req.SessionID}, nil
}

func (f *fakeUpstream) sessionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.chats))
	for _, c := range f.chats {
		out = append(out, c.SessionID)
	}
	return out
}

type fixture struct {
	upstream *fakeUpstream
	backend  *storage.Memory
	clock    *clock.Fake
	metrics  *monitoring.Metrics
	tabs     *Manager
}

func newFixture(t *testing.T, greetings ...string) *fixture {
	t.Helper()
	f := &fixture{
		upstream: &fakeUpstream{greetings: greetings},
		backend:  storage.NewMemory(0),
		clock:    clock.NewFake(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)),
		metrics:  monitoring.NewMetrics(prometheus.NewRegistry()),
	}
	f.tabs = NewManager(Dependencies{
		Upstream: func(auth.TokenSource) Upstream { return f.upstream },
		Storage:  f.backend,
		Session:  session.DefaultConfig(),
		Metrics:  f.metrics,
		Clock:    f.clock,
	})
	t.Cleanup(f.tabs.Shutdown)
	return f
}

// settle waits for the tab's background fetches
func settle(tb *Tab) {
	tb.wg.Wait()
}

func view(t *testing.T, tb *Tab) View {
	t.Helper()
	v, err := tb.View()
	require.NoError(t, err)
	return v
}

func TestLoginShowsGreeting(t *testing.T) {
	f := newFixture(t, "Good morning, Lee!")
	tb := f.tabs.Open()

	require.NoError(t, tb.Login("tok", auth.Identity{ID: "5", FirstName: "Lee"}))
	settle(tb)

	v := view(t, tb)
	assert.True(t, v.LoggedIn)
	assert.Equal(t, notification.PhaseReady, v.Banner.Phase)
	assert.True(t, v.Widget.Badge)

	f.clock.Advance(notification.DefaultShowDelay)
	v = view(t, tb)
	assert.Equal(t, notification.PhaseShown, v.Banner.Phase)
	assert.Equal(t, "Good morning, Lee!", v.Banner.Message)

	require.NoError(t, tb.ClickNotification())
	v = view(t, tb)
	assert.True(t, v.Widget.Open)
	require.Len(t, v.Widget.Transcript, 1)
	assert.Equal(t, widget.RoleAssistant, v.Widget.Transcript[0].Role)
	assert.Equal(t, "Good morning, Lee!", v.Widget.Transcript[0].Text)
	assert.Equal(t, notification.PhaseDismissed, v.Banner.Phase)

	settle(tb)
	assert.Equal(t, 1, f.upstream.greetCalls)
}

func TestSecondLoginDoesNotRefetch(t *testing.T) {
	f := newFixture(t, "Hi")
	tb := f.tabs.Open()

	require.NoError(t, tb.Login("tok", auth.Identity{ID: "5"}))
	require.NoError(t, tb.Login("tok-2", auth.Identity{ID: "5"}))
	settle(tb)
	for i := 0; i < 3; i++ {
		view(t, tb)
		settle(tb)
	}

	assert.Equal(t, 1, f.upstream.greetCalls)
}

func TestReloadRestoresSession(t *testing.T) {
	f := newFixture(t)
	tb := f.tabs.Open()

	require.NoError(t, tb.Send(context.Background(), "first"))
	before := view(t, tb).Session
	require.Equal(t, "active", before.State)

	f.clock.Advance(10 * time.Minute)
	_, err := f.tabs.Reload(tb.ID)
	require.NoError(t, err)

	after := view(t, tb)
	assert.Equal(t, before.SessionID, after.Session.SessionID)
	assert.Empty(t, after.Widget.Transcript, "transcript lives in the page")

	remaining, ok := tb.stack.sessions.Remaining()
	require.True(t, ok)
	assert.Equal(t, 20*time.Minute, remaining)

	require.NoError(t, tb.Send(context.Background(), "second"))
	assert.Equal(t, []string{before.SessionID, before.SessionID}, f.upstream.sessionIDs())
	assert.Equal(t, int64(1), f.metrics.Snapshot().SessionsActive)
}

func TestReloadAfterTimeoutStartsFresh(t *testing.T) {
	f := newFixture(t)
	tb := f.tabs.Open()

	require.NoError(t, tb.Send(context.Background(), "first"))
	first := view(t, tb).Session.SessionID

	f.clock.Advance(session.DefaultTimeout + time.Second)
	assert.Equal(t, "ended", view(t, tb).Session.State)

	_, err := f.tabs.Reload(tb.ID)
	require.NoError(t, err)
	require.NoError(t, tb.Send(context.Background(), "again"))

	ids := f.upstream.sessionIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, first, ids[0])
	assert.NotEqual(t, first, ids[1])
}

func TestHiddenTabUsesBackgroundTimeout(t *testing.T) {
	f := newFixture(t)
	tb := f.tabs.Open()
	require.NoError(t, tb.Send(context.Background(), "hello"))

	require.NoError(t, tb.SetHidden(true))
	assert.True(t, view(t, tb).Session.Hidden)
	remaining, ok := tb.stack.sessions.Remaining()
	require.True(t, ok)
	assert.Equal(t, session.DefaultBackgroundTimeout, remaining)

	require.NoError(t, tb.SetHidden(false))
	remaining, _ = tb.stack.sessions.Remaining()
	assert.Equal(t, session.DefaultTimeout, remaining)
}

func TestClearFetchesFreshGreetingOnNextPoll(t *testing.T) {
	f := newFixture(t, "First", "Second")
	tb := f.tabs.Open()
	require.NoError(t, tb.Login("tok", auth.Identity{ID: "5"}))
	settle(tb)

	require.NoError(t, tb.Open())
	require.NoError(t, tb.Clear())
	assert.Empty(t, view(t, tb).Widget.Transcript)
	settle(tb)

	require.NoError(t, tb.Close())
	require.NoError(t, tb.Open())
	v := view(t, tb)
	require.Len(t, v.Widget.Transcript, 1)
	assert.Equal(t, "Second", v.Widget.Transcript[0].Text)
	assert.Equal(t, 2, f.upstream.greetCalls)
}

func TestLogoutResetsBanner(t *testing.T) {
	f := newFixture(t, "Hi")
	tb := f.tabs.Open()
	require.NoError(t, tb.Login("tok", auth.Identity{ID: "5"}))
	settle(tb)

	require.NoError(t, tb.Logout())
	v := view(t, tb)
	assert.False(t, v.LoggedIn)
	assert.Equal(t, notification.PhaseIdle, v.Banner.Phase)
	assert.False(t, v.Widget.Badge)
}

func TestUnloadEndsSessionAndDropsStorage(t *testing.T) {
	f := newFixture(t)
	tb := f.tabs.Open()
	require.NoError(t, tb.Send(context.Background(), "hello"))

	_, ok, err := f.backend.Scope(tb.ID.String()).Get(session.DefaultStorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.tabs.Unload(tb.ID))

	_, ok, err = f.backend.Scope(tb.ID.String()).Get(session.DefaultStorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, tb.Open(), ErrTabClosed)
	_, err = tb.View()
	assert.ErrorIs(t, err, ErrTabClosed)

	_, err = f.tabs.Get(tb.ID)
	assert.ErrorIs(t, err, ErrTabNotFound)
	assert.ErrorIs(t, f.tabs.Unload(tb.ID), ErrTabNotFound)
	assert.Equal(t, int64(0), f.metrics.Snapshot().SessionsActive)
	assert.Equal(t, int64(0), f.metrics.Snapshot().TabsOpen)
}

func TestShutdownKeepsStorage(t *testing.T) {
	f := newFixture(t)
	tb := f.tabs.Open()
	require.NoError(t, tb.Send(context.Background(), "hello"))

	f.tabs.Shutdown()

	_, ok, err := f.backend.Scope(tb.ID.String()).Get(session.DefaultStorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.clock.Pending())
	assert.Empty(t, f.tabs.List())
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t, "Hi")
	a := f.tabs.Open()
	b := f.tabs.Open()
	f.tabs.Open()

	require.NoError(t, a.Login("tok", auth.Identity{ID: "1"}))
	settle(a)
	require.NoError(t, b.Send(context.Background(), "hi"))

	infos := f.tabs.List()
	require.Len(t, infos, 3)
	assert.Equal(t, a.ID, infos[0].ID)
	// the greeting fetch for a opened a session too
	assert.Equal(t, Stats{Tabs: 3, LoggedIn: 1, ActiveSessions: 2}, f.tabs.Stats())

	_, err := f.tabs.Get(id.TabID("tab_missing"))
	assert.ErrorIs(t, err, ErrTabNotFound)
}

func TestSendRejectionsPassThrough(t *testing.T) {
	f := newFixture(t)
	tb := f.tabs.Open()

	assert.ErrorIs(t, tb.Send(context.Background(), "  "), widget.ErrBlankMessage)
	assert.Empty(t, f.upstream.sessionIDs())
}

func TestNoUpstreamAnswersWithNetworkMessage(t *testing.T) {
	tabs := NewManager(Dependencies{Clock: clock.NewFake(time.Now())})
	t.Cleanup(tabs.Shutdown)
	tb := tabs.Open()

	require.NoError(t, tb.Send(context.Background(), "anyone there?"))
	v := view(t, tb)
	require.Len(t, v.Widget.Transcript, 2)
	assert.Equal(t, widget.DefaultMessages().Network, v.Widget.Transcript[1].Text)
}
