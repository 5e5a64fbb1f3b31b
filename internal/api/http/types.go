package http

import (
	"errors"
	"strings"

	"github.com/GriffinCanCode/maxwidget/internal/domain/auth"
)

// LoginRequest is the body of POST /tabs/:id/login. The user id may be a
// number or a string.
type LoginRequest struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

// Validate rejects a login without a token
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}
	return nil
}

// VisibilityRequest is the body of POST /tabs/:id/visibility
type VisibilityRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// MessageRequest is the body of POST /tabs/:id/messages
type MessageRequest struct {
	Message string `json:"message"`
}
