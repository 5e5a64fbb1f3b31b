// Package id provides ID generation for the widget host.
//
// Two formats are in use:
//   - Prefixed ULIDs for host-side objects (tabs, requests, spans). They sort by
//     creation time, which keeps logs and tab listings readable.
//   - UUIDv4 for conversation session ids, the format the M.A.X. API stores
//     alongside each conversation.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TabID identifies a registered browser tab
type TabID string

// RequestID identifies an outbound or inbound API request
type RequestID string

// SpanID identifies a tracing span
type SpanID string

// SessionID identifies a conversation session (UUID form)
type SessionID string

const (
	TabPrefix     = "tab"
	RequestPrefix = "req"
	SpanPrefix    = "span"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand. IDs from one
// generator sort in creation order, even within a millisecond.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests pass a deterministic reader.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy, now: time.Now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewTabID generates a new tab ID
func NewTabID() TabID {
	return TabID(Default().GenerateWithPrefix(TabPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

// NewSessionID generates a random UUIDv4 session id
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (id TabID) String() string     { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }
func (id SessionID) String() string { return string(id) }

// IsValidSessionID reports whether s parses as a UUID
func IsValidSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// IsValidTabID reports whether s is a tab_ prefixed ULID
func IsValidTabID(s string) bool {
	rest, ok := strings.CutPrefix(s, TabPrefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed or bare ULID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
