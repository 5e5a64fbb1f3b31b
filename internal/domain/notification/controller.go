package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/providers/maxapi"
	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
)

const (
	DefaultShowDelay = time.Second
	DefaultAutoHide  = 15 * time.Second
	DefaultFadeOut   = 300 * time.Millisecond
)

// ErrEmptyGreeting is logged when the API answers without a message
var ErrEmptyGreeting = errors.New("notification: empty greeting message")

// GreetingClient fetches the personalized greeting
type GreetingClient interface {
	Greeting(ctx context.Context, req maxapi.GreetingRequest) (*maxapi.GreetingResponse, error)
}

// SessionSource yields the conversation session id
type SessionSource interface {
	GetSessionID() string
}

// Config holds the notification delays
type Config struct {
	ShowDelay time.Duration
	AutoHide  time.Duration
	FadeOut   time.Duration
}

// DefaultConfig returns the production delays
func DefaultConfig() Config {
	return Config{ShowDelay: DefaultShowDelay, AutoHide: DefaultAutoHide, FadeOut: DefaultFadeOut}
}

// Option configures a Controller
type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(n *Controller) { n.clock = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(n *Controller) {
		if log != nil {
			n.log = log
		}
	}
}

// Controller surfaces one greeting per login
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	client   GreetingClient
	users    auth.Resolver
	sessions SessionSource
	clock    clock.Clock
	log      *zap.Logger

	loggedIn        bool
	phase           Phase
	message         string
	mounted         bool
	fetchedForLogin bool
	inFlight        bool
	closed          bool

	// epoch invalidates fetches started before a reset, logout or close
	epoch uint64
	// generation counts greetings received, so consumers can tell a new
	// greeting from one they already delivered
	generation uint64

	timer    clock.Timer
	timerGen uint64
}

// NewController builds an idle controller
func NewController(client GreetingClient, users auth.Resolver, sessions SessionSource, cfg Config, opts ...Option) *Controller {
	if cfg.ShowDelay < 0 {
		cfg.ShowDelay = 0
	}
	if cfg.AutoHide <= 0 {
		cfg.AutoHide = DefaultAutoHide
	}
	if cfg.FadeOut < 0 {
		cfg.FadeOut = 0
	}

	c := &Controller{
		cfg:      cfg,
		client:   client,
		users:    users,
		sessions: sessions,
		clock:    clock.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("notification")
	return c
}

// OnLoginStateChange follows the login signal. Logging out resets the
// greeting; logging in fetches it unless this login already did.
func (c *Controller) OnLoginStateChange(ctx context.Context, loggedIn bool) {
	c.mu.Lock()
	if !loggedIn {
		if c.loggedIn {
			c.resetLocked()
		}
		c.loggedIn = false
		c.mu.Unlock()
		return
	}
	c.loggedIn = true
	c.mu.Unlock()

	c.Refresh(ctx)
}

// Refresh is the re-render hook: it fetches only while logged in and only
// if this login has not fetched yet
func (c *Controller) Refresh(ctx context.Context) {
	if c.NeedsFetch() {
		c.FetchGreeting(ctx)
	}
}

// NeedsFetch reports whether Refresh would issue a request
func (c *Controller) NeedsFetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn && !c.fetchedForLogin && !c.inFlight && !c.closed
}

// FetchGreeting requests the greeting at most once per login. Overlapping
// calls collapse into the one in flight. Failures are logged and leave the
// controller idle.
func (c *Controller) FetchGreeting(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.fetchedForLogin || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.fetchedForLogin = true
	c.inFlight = true
	c.phase = PhaseLoading
	epoch := c.epoch
	c.mu.Unlock()

	msg, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		c.log.Debug("Ignoring greeting resolved after reset")
		return
	}
	c.inFlight = false

	if err != nil {
		c.phase = PhaseIdle
		c.message = ""
		c.log.Warn("Greeting fetch failed", zap.Error(err))
		return
	}

	c.message = msg
	c.phase = PhaseReady
	c.generation++
	c.armLocked(c.cfg.ShowDelay, c.showLocked)
}

func (c *Controller) fetch(ctx context.Context) (string, error) {
	user, err := c.users.CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Greeting(ctx, maxapi.GreetingRequest{
		UserID:    user.UserID(),
		UserName:  user.DisplayName(),
		SessionID: c.sessions.GetSessionID(),
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.GreetingMessage) == "" {
		return "", ErrEmptyGreeting
	}
	return resp.GreetingMessage, nil
}

// Dismiss retires the banner; after the fade-out delay it unmounts
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dismissLocked()
}

// Click runs open (the widget-open routine) and dismisses the banner
func (c *Controller) Click(open func()) {
	if open != nil {
		open()
	}
	c.Dismiss()
}

// Reset returns to idle and clears the per-login guard, so the next
// Refresh computes a fresh greeting without a logout/login cycle
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Close clears timers; a fetch still in flight is ignored when it resolves
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.epoch++
	c.cancelLocked()
}

// Greeting returns the greeting received for this login, if any. The
// generation changes with every successful fetch.
func (c *Controller) Greeting() (string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.message == "" || c.phase < PhaseReady {
		return "", c.generation, false
	}
	return c.message, c.generation, true
}

// Banner returns the view state
func (c *Controller) Banner() Banner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Banner{Phase: c.phase, Message: c.message, Mounted: c.mounted}
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) showLocked() {
	if c.phase != PhaseReady {
		return
	}
	c.phase = PhaseShown
	c.mounted = true
	c.armLocked(c.cfg.AutoHide, c.dismissLocked)
}

func (c *Controller) dismissLocked() {
	if c.phase != PhaseShown && c.phase != PhaseReady {
		return
	}
	wasMounted := c.mounted
	c.phase = PhaseDismissed
	if !wasMounted {
		c.cancelLocked()
		return
	}
	c.armLocked(c.cfg.FadeOut, func() { c.mounted = false })
}

func (c *Controller) resetLocked() {
	c.cancelLocked()
	c.epoch++
	c.phase = PhaseIdle
	c.message = ""
	c.mounted = false
	c.fetchedForLogin = false
	c.inFlight = false
}

// armLocked replaces the single pending timer. fn runs with c.mu held.
func (c *Controller) armLocked(d time.Duration, fn func()) {
	c.cancelLocked()
	if c.closed {
		return
	}
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.timerGen || c.closed {
			return
		}
		c.timer = nil
		fn()
	})
}

func (c *Controller) cancelLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
