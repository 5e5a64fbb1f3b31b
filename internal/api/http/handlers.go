package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/domain/tab"
	"github.com/GriffinCanCode/maxwidget/internal/domain/widget"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/maxwidget/internal/shared/id"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// BreakerSource reports the upstream breaker state
type BreakerSource interface {
	BreakerState() resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	tabs     *tab.Manager
	metrics  *monitoring.Metrics
	upstream BreakerSource
	renderer *Renderer
	log      *zap.Logger
}

// NewHandlers creates a new handler set. upstream may be nil.
func NewHandlers(tabs *tab.Manager, metrics *monitoring.Metrics, upstream BreakerSource, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		tabs:     tabs,
		metrics:  metrics,
		upstream: upstream,
		renderer: NewRenderer(),
		log:      log.Named("http"),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "M.A.X. widget host",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	upstream := gin.H{"configured": h.upstream != nil}
	if h.upstream != nil {
		upstream["breaker"] = h.upstream.BreakerState().String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"tabs":     h.tabs.Stats(),
		"metrics":  h.metrics.Snapshot(),
		"uptime_s": int64(h.metrics.Uptime().Seconds()),
		"upstream": upstream,
	})
}

// ListTabs lists the live tabs
func (h *Handlers) ListTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tabs":  h.tabs.List(),
		"stats": h.tabs.Stats(),
	})
}

// CreateTab registers a new browser tab
func (h *Handlers) CreateTab(c *gin.Context) {
	t := h.tabs.Open()
	c.JSON(http.StatusCreated, gin.H{"tab_id": t.ID})
}

// GetTab is the poll endpoint
func (h *Handlers) GetTab(c *gin.Context) {
	t, ok := h.tab(c)
	if !ok {
		return
	}
	h.respond(c, t, nil)
}

// DeleteTab is the tab unload
func (h *Handlers) DeleteTab(c *gin.Context) {
	tabID, ok := tabParam(c)
	if !ok {
		return
	}
	if err := h.tabs.Unload(tabID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tab_id": tabID})
}

// ReloadTab rebuilds the widget as a page reload would
func (h *Handlers) ReloadTab(c *gin.Context) {
	tabID, ok := tabParam(c)
	if !ok {
		return
	}
	t, err := h.tabs.Reload(tabID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, t, nil)
}

// Login signs a user into a tab
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, ok := h.tab(c)
	if !ok {
		return
	}
	h.respond(c, t, t.Login(req.Token, req.User))
}

// Logout signs the user out of a tab
func (h *Handlers) Logout(c *gin.Context) {
	h.act(c, (*tab.Tab).Logout)
}

// SetVisibility reports a page visibility change
func (h *Handlers) SetVisibility(c *gin.Context) {
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, ok := h.tab(c)
	if !ok {
		return
	}
	h.respond(c, t, t.SetHidden(*req.Hidden))
}

// OpenWidget opens the widget
func (h *Handlers) OpenWidget(c *gin.Context) {
	h.act(c, (*tab.Tab).Open)
}

// CloseWidget closes the widget
func (h *Handlers) CloseWidget(c *gin.Context) {
	h.act(c, (*tab.Tab).Close)
}

// ClearConversation clears the transcript and ends the session
func (h *Handlers) ClearConversation(c *gin.Context) {
	h.act(c, (*tab.Tab).Clear)
}

// SendMessage sends one message and returns once the reply is in
func (h *Handlers) SendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, ok := h.tab(c)
	if !ok {
		return
	}
	h.respond(c, t, t.Send(c.Request.Context(), req.Message))
}

// ClickNotification opens the widget from the banner
func (h *Handlers) ClickNotification(c *gin.Context) {
	h.act(c, (*tab.Tab).ClickNotification)
}

// DismissNotification hides the banner
func (h *Handlers) DismissNotification(c *gin.Context) {
	h.act(c, (*tab.Tab).DismissNotification)
}

// act runs a body-less tab event and answers with the new state
func (h *Handlers) act(c *gin.Context, event func(*tab.Tab) error) {
	t, ok := h.tab(c)
	if !ok {
		return
	}
	h.respond(c, t, event(t))
}

func (h *Handlers) tab(c *gin.Context) (*tab.Tab, bool) {
	tabID, ok := tabParam(c)
	if !ok {
		return nil, false
	}
	t, err := h.tabs.Get(tabID)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return t, true
}

func tabParam(c *gin.Context) (id.TabID, bool) {
	raw := c.Param("id")
	if !id.IsValidTabID(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tab_id"})
		return "", false
	}
	return id.TabID(raw), true
}

// respond writes the tab state, or the error from the event that preceded it
func (h *Handlers) respond(c *gin.Context, t *tab.Tab, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := t.View()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.renderer.Render(view))
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tab.ErrTabNotFound), errors.Is(err, tab.ErrTabClosed), errors.Is(err, widget.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, widget.ErrSendInFlight):
		return http.StatusConflict
	case errors.Is(err, widget.ErrBlankMessage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
