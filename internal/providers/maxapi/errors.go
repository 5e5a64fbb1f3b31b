package maxapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/resilience"
)

// Kind classifies a failed call
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server"
	KindStatus       Kind = "status"
	KindNetwork      Kind = "network"
)

// Error is a classified call failure
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("maxapi: %s (status %d): %v", e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("maxapi: %s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("maxapi: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("maxapi: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindForStatus maps a non-2xx HTTP status to its kind
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError:
		return KindServer
	default:
		return KindStatus
	}
}

// Classify converts any call error into an *Error. It returns nil for nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}

	// Breaker rejections, refused connections and DNS failures all mean no
	// response was received.
	return &Error{Kind: KindNetwork, Err: err}
}

// upstreamHealthy reports whether err still proves the upstream is up. Auth
// and throttling answers come from a working server and must not open the
// breaker.
func upstreamHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return false
	}
	apiErr := Classify(err)
	switch apiErr.Kind {
	case KindUnauthorized, KindRateLimited:
		return true
	case KindStatus:
		return apiErr.Status >= 400 && apiErr.Status < 500
	default:
		return false
	}
}
