package maxapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/maxwidget/internal/shared/id"
)

const (
	DefaultGreetingTimeout = 10 * time.Second
	DefaultChatTimeout     = 60 * time.Second

	breakerName = "max-api"
)

// Config configures the API client
type Config struct {
	BaseURL         string
	GreetingTimeout time.Duration
	ChatTimeout     time.Duration
	// RateLimit caps outbound requests per second; zero is unlimited
	RateLimit float64
	UserAgent string
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTracer propagates trace headers and records client spans
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMetrics records call outcomes
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreakerSettings overrides the circuit breaker configuration
func WithBreakerSettings(s resilience.Settings) Option {
	return func(c *Client) { c.breakerSettings = &s }
}

// Client talks to the M.A.X. API. It is shared by every tab; per-user
// credentials are bound with ForUser.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
	log     *zap.Logger
	cfg     Config

	breakerSettings *resilience.Settings
	mu              sync.RWMutex
}

// New builds a client over a pooled transport. Neither endpoint is retried:
// the greeting is best-effort and a chat turn is not idempotent.
func New(cfg Config, opts ...Option) *Client {
	if cfg.GreetingTimeout <= 0 {
		cfg.GreetingTimeout = DefaultGreetingTimeout
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "maxwidget/1.0"
	}

	c := &Client{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("maxapi")

	pooled := retryablehttp.NewClient()
	pooled.Logger = nil

	c.resty = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.ChatTimeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetTransport(pooled.HTTPClient.Transport)

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	settings := resilience.Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.6)
		},
	}
	if c.breakerSettings != nil {
		settings = *c.breakerSettings
	}
	settings.IsSuccessful = upstreamHealthy
	userHook := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to resilience.State) {
		c.log.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		c.metrics.SetBreakerState(name, int(to))
		if userHook != nil {
			userHook(name, from, to)
		}
	}
	c.breaker = resilience.New(breakerName, settings)

	return c
}

// Greeting fetches the personalized greeting for req
func (c *Client) Greeting(ctx context.Context, token string, req GreetingRequest) (*GreetingResponse, error) {
	timer := monitoring.NewGreetingTimer(c.metrics)
	var out GreetingResponse
	err := c.post(ctx, "max.greeting", PathGreeting, c.cfg.GreetingTimeout, token, req, &out)
	timer.Stop(outcome(err))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one user turn and returns the assistant reply
func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (*ChatResponse, error) {
	timer := monitoring.NewChatTimer(c.metrics)
	var out ChatResponse
	err := c.post(ctx, "max.chat", PathChat, c.cfg.ChatTimeout, token, req, &out)
	timer.Stop(outcome(err))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BreakerState returns the upstream breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// SetRateLimit changes the outbound rate limit (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
}

func (c *Client) post(ctx context.Context, op, path string, timeout time.Duration, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindRateLimited, Err: fmt.Errorf("client rate limit: %w", err)}
	}

	var span *tracing.Span
	if c.tracer != nil {
		span, ctx = c.tracer.StartSpan(ctx, op)
		span.SetTag("span.kind", "client")
	}
	requestID := id.NewRequestID()

	resp, err := resilience.Call(c.breaker, func() (*resty.Response, error) {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeaders(tracing.Headers(ctx)).
			SetHeader("X-Request-ID", requestID.String()).
			SetBody(body).
			SetResult(out).
			Post(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, &Error{Kind: KindForStatus(resp.StatusCode()), Status: resp.StatusCode()}
		}
		return resp, nil
	})

	if span != nil {
		if resp != nil {
			span.SetStatus(resp.StatusCode())
		}
		span.SetError(err)
		span.Finish()
		c.tracer.Submit(span)
	}

	if err != nil {
		apiErr := Classify(err)
		c.log.Debug("M.A.X. call failed",
			zap.String("op", op),
			zap.String("request_id", requestID.String()),
			zap.String("kind", string(apiErr.Kind)),
			zap.Int("status", apiErr.Status),
			zap.Error(err))
		return apiErr
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return monitoring.OutcomeOK
	}
	return string(Classify(err).Kind)
}

// UserClient binds the client to one tab's credentials
type UserClient struct {
	client *Client
	tokens auth.TokenSource
}

// ForUser returns a client that authenticates with tokens
func (c *Client) ForUser(tokens auth.TokenSource) *UserClient {
	return &UserClient{client: c, tokens: tokens}
}

func (u *UserClient) Greeting(ctx context.Context, req GreetingRequest) (*GreetingResponse, error) {
	token, err := u.tokens.Token(ctx)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Err: err}
	}
	return u.client.Greeting(ctx, token, req)
}

func (u *UserClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	token, err := u.tokens.Token(ctx)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Err: err}
	}
	return u.client.Chat(ctx, token, req)
}
