package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AnonymousUserID is sent when no user id is known
const AnonymousUserID = "anonymous"

// Identity is the signed-in user as reported by the auth collaborator
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UnmarshalJSON accepts a numeric or string id
func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		FirstName string          `json:"first_name"`
		LastName  string          `json:"last_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	*i = Identity{ID: id, FirstName: raw.FirstName, LastName: raw.LastName}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("auth: id must be a string or number: %w", err)
	}
	return n.String(), nil
}

// UserID returns the id in string form, or AnonymousUserID
func (i *Identity) UserID() string {
	if i == nil || strings.TrimSpace(i.ID) == "" {
		return AnonymousUserID
	}
	return i.ID
}

// DisplayName joins first and last name; empty when neither is set
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}
