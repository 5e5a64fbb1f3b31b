package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/providers/maxapi"
	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockGreetings struct {
	mock.Mock
}

func (m *mockGreetings) Greeting(ctx context.Context, req maxapi.GreetingRequest) (*maxapi.GreetingResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*maxapi.GreetingResponse)
	return resp, args.Error(1)
}

type fixedSession string

func (s fixedSession) GetSessionID() string { return string(s) }

type fixture struct {
	client *mockGreetings
	users  *auth.Store
	clock  *clock.Fake
	ctrl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		client: &mockGreetings{},
		users:  auth.NewStore(),
		clock:  clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.ctrl = NewController(f.client, f.users, fixedSession("sid-1"), DefaultConfig(), WithClock(f.clock))
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) login() {
	f.users.Login("tok", auth.Identity{ID: "7", FirstName: "Sam", LastName: "Rivera"})
	f.ctrl.OnLoginStateChange(context.Background(), true)
}

func greeting(msg string) *maxapi.GreetingResponse {
	return &maxapi.GreetingResponse{Status: "success", GreetingMessage: msg}
}

func TestGreetingShownThenAutoDismissed(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, maxapi.GreetingRequest{
		UserID: "7", UserName: "Sam Rivera", SessionID: "sid-1",
	}).Return(greeting("Hi Sam!"), nil).Once()

	f.login()
	assert.Equal(t, PhaseReady, f.ctrl.Phase())

	f.clock.Advance(DefaultShowDelay)
	banner := f.ctrl.Banner()
	assert.Equal(t, PhaseShown, banner.Phase)
	assert.Equal(t, "Hi Sam!", banner.Message)
	assert.True(t, banner.Mounted)

	f.clock.Advance(15000*time.Millisecond - time.Millisecond)
	assert.Equal(t, PhaseShown, f.ctrl.Phase())

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, PhaseDismissed, f.ctrl.Phase())
	assert.True(t, f.ctrl.Banner().Mounted, "still fading out")

	f.clock.Advance(DefaultFadeOut)
	assert.False(t, f.ctrl.Banner().Mounted)
	f.client.AssertExpectations(t)
}

func TestSingleFetchAcrossRefreshes(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("Hello"), nil).Once()

	f.login()
	for i := 0; i < 10; i++ {
		f.ctrl.Refresh(context.Background())
		f.ctrl.OnLoginStateChange(context.Background(), true)
	}

	f.client.AssertNumberOfCalls(t, "Greeting", 1)
	assert.False(t, f.ctrl.NeedsFetch())
}

func TestConcurrentFetchesCollapse(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.client.On("Greeting", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(greeting("Hello"), nil).Once()
	f.users.Login("tok", auth.Identity{ID: "7"})
	f.ctrl.mu.Lock()
	f.ctrl.loggedIn = true
	f.ctrl.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ctrl.FetchGreeting(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	f.client.AssertNumberOfCalls(t, "Greeting", 1)
	assert.Equal(t, PhaseReady, f.ctrl.Phase())
}

func TestFetchFailuresStayIdle(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "transport error",
			setup: func(f *fixture) {
				f.client.On("Greeting", mock.Anything, mock.Anything).
					Return(nil, &maxapi.Error{Kind: maxapi.KindNetwork}).Once()
			},
		},
		{
			name: "empty message",
			setup: func(f *fixture) {
				f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("   "), nil).Once()
			},
		},
		{
			name: "missing message",
			setup: func(f *fixture) {
				f.client.On("Greeting", mock.Anything, mock.Anything).Return(&maxapi.GreetingResponse{}, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			f.login()
			f.clock.Advance(time.Minute)

			assert.Equal(t, PhaseIdle, f.ctrl.Phase())
			_, _, ok := f.ctrl.Greeting()
			assert.False(t, ok)

			f.ctrl.Refresh(context.Background())
			f.client.AssertNumberOfCalls(t, "Greeting", 1)
		})
	}
}

func TestUnresolvedUserIsFailure(t *testing.T) {
	f := newFixture(t)

	f.ctrl.OnLoginStateChange(context.Background(), true)

	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	f.client.AssertNotCalled(t, "Greeting", mock.Anything, mock.Anything)
}

func TestLogoutResets(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("Hi"), nil).Twice()

	f.login()
	f.clock.Advance(DefaultShowDelay)
	require.Equal(t, PhaseShown, f.ctrl.Phase())

	f.users.Logout()
	f.ctrl.OnLoginStateChange(context.Background(), false)
	assert.Equal(t, Banner{Phase: PhaseIdle}, f.ctrl.Banner())
	assert.Equal(t, 0, f.clock.Pending())

	f.login()
	f.client.AssertNumberOfCalls(t, "Greeting", 2)
}

func TestClickOpensAndDismisses(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("Hi"), nil)

	f.login()
	f.clock.Advance(DefaultShowDelay)

	opened := 0
	f.ctrl.Click(func() { opened++ })

	assert.Equal(t, 1, opened)
	assert.Equal(t, PhaseDismissed, f.ctrl.Phase())

	f.clock.Advance(DefaultAutoHide)
	assert.Equal(t, PhaseDismissed, f.ctrl.Phase(), "auto-hide was cancelled")
	assert.False(t, f.ctrl.Banner().Mounted)
}

func TestDismissBeforeShown(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("Hi"), nil)

	f.login()
	f.ctrl.Dismiss()
	f.clock.Advance(time.Minute)

	assert.Equal(t, PhaseDismissed, f.ctrl.Phase())
	assert.False(t, f.ctrl.Banner().Mounted)
	msg, _, ok := f.ctrl.Greeting()
	assert.True(t, ok, "dismissed greeting is still available to the widget")
	assert.Equal(t, "Hi", msg)
}

func TestResetAllowsFreshGreeting(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("First"), nil).Once()
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("Second"), nil).Once()

	f.login()
	_, firstGen, _ := f.ctrl.Greeting()

	f.ctrl.Reset()
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.True(t, f.ctrl.NeedsFetch())
	f.client.AssertNumberOfCalls(t, "Greeting", 1)

	f.ctrl.Refresh(context.Background())
	msg, gen, ok := f.ctrl.Greeting()
	require.True(t, ok)
	assert.Equal(t, "Second", msg)
	assert.Greater(t, gen, firstGen)
}

func TestStaleFetchIgnoredAfterReset(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.client.On("Greeting", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(greeting("Late"), nil).Once()

	f.users.Login("tok", auth.Identity{ID: "7"})
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.ctrl.OnLoginStateChange(context.Background(), true)
	}()

	require.Eventually(t, func() bool { return f.ctrl.Phase() == PhaseLoading }, time.Second, time.Millisecond)
	f.ctrl.Reset()
	close(release)
	<-done

	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	_, _, ok := f.ctrl.Greeting()
	assert.False(t, ok)
}

func TestCloseClearsTimers(t *testing.T) {
	f := newFixture(t)
	f.client.On("Greeting", mock.Anything, mock.Anything).Return(greeting("Hi"), nil)

	f.login()
	require.Equal(t, 1, f.clock.Pending())

	f.ctrl.Close()
	assert.Equal(t, 0, f.clock.Pending())
	f.clock.Advance(time.Minute)
	assert.Equal(t, PhaseReady, f.ctrl.Phase())

	f.ctrl.Refresh(context.Background())
	f.client.AssertNumberOfCalls(t, "Greeting", 1)
}

func TestPhaseNames(t *testing.T) {
	for phase, want := range map[Phase]string{
		PhaseIdle: "idle", PhaseLoading: "loading", PhaseReady: "ready",
		PhaseShown: "shown", PhaseDismissed: "dismissed",
	} {
		text, err := phase.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(text))
	}
	assert.True(t, errors.Is(ErrEmptyGreeting, ErrEmptyGreeting))
}
