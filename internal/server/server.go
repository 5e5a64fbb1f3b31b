package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/maxwidget/internal/api/http"
	"github.com/GriffinCanCode/maxwidget/internal/api/middleware"
	"github.com/GriffinCanCode/maxwidget/internal/domain/notification"
	"github.com/GriffinCanCode/maxwidget/internal/domain/session"
	"github.com/GriffinCanCode/maxwidget/internal/domain/tab"
	"github.com/GriffinCanCode/maxwidget/internal/domain/widget"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/config"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/storage"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/maxwidget/internal/providers/maxapi"
	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	router   *gin.Engine
	http     *http.Server
	tabs     *tab.Manager
	client   *maxapi.Client
	backend  storage.Backend
	tracer   *tracing.Tracer
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
}

// Option customizes NewServer
type Option func(*options)

type options struct {
	clock   clock.Clock
	backend storage.Backend
}

// WithClock drives every tab timer from c
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithStorage replaces the configured storage backend
func WithStorage(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, log *zap.Logger, opts ...Option) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	messages, err := widget.LoadMessages(cfg.MessagesFile)
	if err != nil {
		return nil, err
	}

	backend := o.backend
	if backend == nil {
		backend, err = storage.Open(storage.Options{
			Driver:   cfg.Storage.Driver,
			Dir:      cfg.Storage.Dir,
			RedisURL: cfg.Storage.RedisURL,
			TTL:      cfg.Storage.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
		}
	}
	log.Info("Tab storage ready", zap.String("driver", cfg.Storage.Driver))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("maxwidget", log)

	client := maxapi.New(maxapi.Config{
		BaseURL:         cfg.API.BaseURL,
		GreetingTimeout: cfg.API.GreetingTimeout,
		ChatTimeout:     cfg.API.ChatTimeout,
		RateLimit:       cfg.API.RateLimit,
	},
		maxapi.WithLogger(log),
		maxapi.WithTracer(tracer),
		maxapi.WithMetrics(metrics),
	)
	log.Info("M.A.X. API client ready", zap.String("base_url", cfg.API.BaseURL))

	tabs := tab.NewManager(tab.Dependencies{
		Upstream: tab.ForClient(client),
		Storage:  backend,
		Session: session.Config{
			Timeout:           cfg.Session.Timeout,
			BackgroundTimeout: cfg.Session.BackgroundTimeout,
			StorageKey:        cfg.Session.StorageKey,
		},
		Notification: notification.Config{
			ShowDelay: cfg.Notification.ShowDelay,
			AutoHide:  cfg.Notification.AutoHide,
			FadeOut:   cfg.Notification.FadeOut,
		},
		Messages: messages,
		Metrics:  metrics,
		Logger:   log,
		Clock:    o.clock,
	})

	s := &Server{
		cfg:      cfg,
		log:      log,
		tabs:     tabs,
		client:   client,
		backend:  backend,
		tracer:   tracer,
		metrics:  metrics,
		registry: registry,
	}
	s.router = s.routes(apihttp.NewHandlers(tabs, metrics, client, log))
	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// a send blocks until the chat reply arrives
		WriteTimeout: cfg.API.ChatTimeout + 10*time.Second,
	}
	return s, nil
}

func (s *Server) routes(h *apihttp.Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(s.log.Named("access")),
		middleware.CORS(middleware.DefaultCORSConfig(s.cfg.CORS.AllowedOrigins...)),
		tracing.HTTPMiddleware(s.tracer),
		monitoring.Middleware(s.metrics),
	)

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(s.registry)))

	api := router.Group("/tabs")
	if s.cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}

	// Tab lifecycle
	api.GET("", h.ListTabs)
	api.POST("", h.CreateTab)
	api.GET("/:id", h.GetTab)
	api.DELETE("/:id", h.DeleteTab)
	api.POST("/:id/reload", h.ReloadTab)

	// Page signals
	api.POST("/:id/login", h.Login)
	api.POST("/:id/logout", h.Logout)
	api.POST("/:id/visibility", h.SetVisibility)

	// Widget events
	api.POST("/:id/open", h.OpenWidget)
	api.POST("/:id/close", h.CloseWidget)
	api.POST("/:id/clear", h.ClearConversation)
	api.POST("/:id/messages", h.SendMessage)

	// Greeting banner
	api.POST("/:id/notification/click", h.ClickNotification)
	api.POST("/:id/notification/dismiss", h.DismissNotification)

	return router
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tabs returns the tab registry
func (s *Server) Tabs() *tab.Manager {
	return s.tabs
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() error {
	s.log.Info("Starting widget host", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, unmounts every tab and releases resources
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.Close()
	return err
}

// Close releases everything except the listener
func (s *Server) Close() {
	s.tabs.Shutdown()
	s.tracer.Close()
	if err := s.backend.Close(); err != nil {
		s.log.Warn("Error closing storage", zap.Error(err))
	}
}
