package maxapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/resilience"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGreeting(t *testing.T) {
	var got GreetingRequest
	var headers http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathGreeting, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "success",
			"user_id":          got.UserID,
			"greeting_message": "Hi Sam!",
			"session_id":       got.SessionID,
			"timestamp":        "2024-05-01T12:00:00Z",
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/"})
	resp, err := c.Greeting(context.Background(), "secret", GreetingRequest{
		UserID: "42", UserName: "Sam Rivera", SessionID: "sid-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "Hi Sam!", resp.GreetingMessage)
	assert.Equal(t, "sid-1", resp.SessionID)
	assert.Equal(t, GreetingRequest{UserID: "42", UserName: "Sam Rivera", SessionID: "sid-1"}, got)
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.NotEmpty(t, headers.Get("X-Request-ID"))
}

func TestChatOmitsEmptyUserName(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeJSON(w, http.StatusOK, map[string]any{"response": "pong", "pipeline_completed": true})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.Chat(context.Background(), "t", ChatRequest{UserID: "anonymous", Message: "ping", SessionID: "s"})

	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Response)
	assert.True(t, resp.PipelineCompleted)
	assert.NotContains(t, raw, "user_name")
	assert.Equal(t, "ping", raw["message"])
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindStatus},
		{http.StatusNotFound, KindStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"detail": "nope"})
			}))
			defer srv.Close()

			_, err := New(Config{BaseURL: srv.URL}).Chat(context.Background(), "t", ChatRequest{Message: "hi"})

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestChatTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, ChatTimeout: 50 * time.Millisecond})
	_, err := c.Chat(context.Background(), "t", ChatRequest{Message: "slow"})

	assert.Equal(t, KindTimeout, Classify(err).Kind)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{BaseURL: url}).Chat(context.Background(), "t", ChatRequest{Message: "hi"})
	assert.Equal(t, KindNetwork, Classify(err).Kind)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var status atomic.Int32
	var hits atomic.Int32
	status.Store(http.StatusUnauthorized)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithBreakerSettings(resilience.Settings{
		Timeout:     time.Hour,
		ReadyToTrip: func(counts resilience.Counts) bool { return counts.ConsecutiveFailures >= 3 },
	}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = c.Chat(ctx, "t", ChatRequest{Message: "hi"})
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 3; i++ {
		_, _ = c.Chat(ctx, "t", ChatRequest{Message: "hi"})
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	before := hits.Load()
	_, err := c.Chat(ctx, "t", ChatRequest{Message: "hi"})
	assert.Equal(t, KindNetwork, Classify(err).Kind)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, before, hits.Load(), "open breaker short-circuits")
}

func TestUserClientRequiresToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"response": "ok"})
	}))
	defer srv.Close()

	store := auth.NewStore()
	user := New(Config{BaseURL: srv.URL}).ForUser(store)

	_, err := user.Chat(context.Background(), ChatRequest{Message: "hi"})
	assert.Equal(t, KindUnauthorized, Classify(err).Kind)
	assert.Equal(t, int32(0), hits.Load())

	store.Login("tok", auth.Identity{ID: "1"})
	resp, err := user.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Response)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindNetwork, Classify(errors.New("connection refused")).Kind)

	wrapped := &Error{Kind: KindServer, Status: 500}
	assert.Same(t, wrapped, Classify(wrapped))
	assert.Contains(t, wrapped.Error(), "status 500")
}
