package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
	"github.com/GriffinCanCode/maxwidget/internal/shared/id"
)

const (
	DefaultTimeout           = 30 * time.Minute
	DefaultBackgroundTimeout = 5 * time.Minute
	DefaultStorageKey        = "maxChatSession"
)

// ErrInvalidRecord marks a persisted record that cannot be reinstated
var ErrInvalidRecord = errors.New("session: invalid persisted record")

// Storage is the tab-scoped key-value store holding the session record.
// The manager is its only writer.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Config controls timeouts and the storage key
type Config struct {
	Timeout           time.Duration
	BackgroundTimeout time.Duration
	StorageKey        string
}

// DefaultConfig returns the production timeouts
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		BackgroundTimeout: DefaultBackgroundTimeout,
		StorageKey:        DefaultStorageKey,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BackgroundTimeout <= 0 {
		c.BackgroundTimeout = DefaultBackgroundTimeout
	}
	if c.StorageKey == "" {
		c.StorageKey = DefaultStorageKey
	}
	return c
}

// StartObserver is told about every session that becomes active
type StartObserver func(rec Record, restored bool)

// EndObserver is told about every session that ends
type EndObserver func(rec Record, reason EndReason)

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the wall clock
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithIDGenerator overrides session id generation
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithStartObserver registers an observer before restore runs, so a
// restored session is reported too
func WithStartObserver(fn StartObserver) Option {
	return func(m *Manager) { m.onStart = append(m.onStart, fn) }
}

// WithEndObserver registers an end observer
func WithEndObserver(fn EndObserver) Option {
	return func(m *Manager) { m.onEnd = append(m.onEnd, fn) }
}

// Manager owns one conversation session for one tab
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	store Storage
	clock clock.Clock
	log   *zap.Logger
	newID func() string

	record Record
	state  State
	hidden bool
	closed bool

	timer    clock.Timer
	timerGen uint64
	deadline time.Time

	onStart []StartObserver
	onEnd   []EndObserver
}

// NewManager creates a manager and restores any live session persisted in store
func NewManager(store Storage, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:   cfg.withDefaults(),
		store: store,
		clock: clock.New(),
		log:   zap.NewNop(),
		newID: func() string { return id.NewSessionID().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.Named("session")

	m.mu.Lock()
	restored, ok := m.restoreLocked()
	m.mu.Unlock()

	if ok {
		m.notifyStart(restored, true)
	}
	return m
}

// OnStart registers a start observer
func (m *Manager) OnStart(fn StartObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStart = append(m.onStart, fn)
}

// OnEnd registers an end observer
func (m *Manager) OnEnd(fn EndObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}

// StartSession creates a fresh session, replacing any active one. After
// Close it returns the last id and changes nothing.
func (m *Manager) StartSession() string {
	m.mu.Lock()
	if m.closed {
		sid := m.record.SessionID
		m.mu.Unlock()
		return sid
	}
	replaced, hadActive := m.record, m.state == StateActive
	if hadActive {
		m.record.IsActive = false
		m.cancelLocked()
	}
	rec := m.startLocked()
	m.mu.Unlock()

	if hadActive {
		m.notifyEnd(replaced, ReasonReplaced)
	}
	m.notifyStart(rec, false)
	return rec.SessionID
}

// GetSessionID returns the active session id, restoring or creating one as
// needed. A closed manager only reports the last id it held; the record in
// storage belongs to whatever manager was mounted after it.
func (m *Manager) GetSessionID() string {
	m.mu.Lock()
	if m.state == StateActive || m.closed {
		sid := m.record.SessionID
		m.mu.Unlock()
		return sid
	}

	if rec, ok := m.restoreLocked(); ok {
		m.mu.Unlock()
		m.notifyStart(rec, true)
		return rec.SessionID
	}

	rec := m.startLocked()
	m.mu.Unlock()

	m.notifyStart(rec, false)
	return rec.SessionID
}

// UpdateActivity records user activity and re-arms the inactivity timer.
// It is a no-op without an active session.
func (m *Manager) UpdateActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.closed {
		return
	}
	m.record.LastActivityTime = m.clock.Now()
	m.persistLocked()
	m.armLocked(m.effectiveTimeoutLocked())
}

// EndSession ends the active session. A second call is a no-op.
func (m *Manager) EndSession() {
	m.end(ReasonExplicit)
}

// Unload is the best-effort cleanup run when the tab goes away
func (m *Manager) Unload() {
	m.end(ReasonUnload)
	m.Close()
}

// SetHidden reports a tab visibility change. Hiding an active session shortens
// its remaining lifetime to the background timeout; showing it again counts as
// activity. The start time is never touched.
func (m *Manager) SetHidden(hidden bool) {
	m.mu.Lock()
	if m.hidden == hidden || m.closed {
		m.mu.Unlock()
		return
	}
	m.hidden = hidden
	active := m.state == StateActive
	if active && hidden {
		m.armLocked(m.cfg.BackgroundTimeout)
	}
	m.mu.Unlock()

	if active && !hidden {
		m.UpdateActivity()
	}
}

// SessionDurationMinutes reports the session length rounded to whole minutes
func (m *Manager) SessionDurationMinutes() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		return 0
	}
	end := m.record.LastActivityTime
	if m.state == StateActive {
		end = m.clock.Now()
	}
	return int(math.Round(end.Sub(m.record.StartTime).Minutes()))
}

// Snapshot returns a copy of the current record and state
func (m *Manager) Snapshot() (Record, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record, m.state
}

// IsActive reports whether a session is active
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive
}

// Hidden reports the last visibility state
func (m *Manager) Hidden() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hidden
}

// Remaining reports the time until the inactivity timer fires
func (m *Manager) Remaining() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.timer == nil {
		return 0, false
	}
	return m.deadline.Sub(m.clock.Now()), true
}

// Close cancels the pending timer and leaves storage intact so a reload of
// the same tab can restore the session
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cancelLocked()
}

func (m *Manager) end(reason EndReason) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	rec, ok := m.endLocked()
	m.mu.Unlock()

	if ok {
		m.finishEnd(rec, reason)
	}
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || m.closed {
		m.mu.Unlock()
		return
	}
	rec, ok := m.endLocked()
	m.mu.Unlock()

	if ok {
		m.finishEnd(rec, ReasonTimeout)
	}
}

// endLocked deactivates the session and clears storage. Caller holds m.mu.
func (m *Manager) endLocked() (Record, bool) {
	if m.state != StateActive {
		return Record{}, false
	}
	m.cancelLocked()
	m.record.IsActive = false
	m.state = StateEnded
	if err := m.store.Remove(m.cfg.StorageKey); err != nil {
		m.log.Warn("Failed to remove session record", zap.Error(err))
	}
	return m.record, true
}

func (m *Manager) finishEnd(rec Record, reason EndReason) {
	m.log.Info("Session ended",
		zap.String("session_id", rec.SessionID),
		zap.String("reason", string(reason)))
	m.notifyEnd(rec, reason)
}

// startLocked creates, persists and arms a new session. Caller holds m.mu.
func (m *Manager) startLocked() Record {
	now := m.clock.Now()
	m.record = Record{
		SessionID:        m.newID(),
		StartTime:        now,
		LastActivityTime: now,
		IsActive:         true,
	}
	m.state = StateActive
	m.persistLocked()
	m.armLocked(m.effectiveTimeoutLocked())

	m.log.Debug("Session started", zap.String("session_id", m.record.SessionID))
	return m.record
}

// restoreLocked reinstates a live persisted record. Caller holds m.mu.
func (m *Manager) restoreLocked() (Record, bool) {
	raw, found, err := m.store.Get(m.cfg.StorageKey)
	if err != nil {
		m.log.Warn("Failed to read session record", zap.Error(err))
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		m.log.Warn("Discarding unreadable session record", zap.Error(err))
		m.discardLocked()
		return Record{}, false
	}

	elapsed := m.clock.Now().Sub(rec.LastActivityTime)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= m.cfg.Timeout {
		m.log.Info("Discarding expired session record",
			zap.String("session_id", rec.SessionID),
			zap.Duration("elapsed", elapsed))
		m.discardLocked()
		return Record{}, false
	}

	rec.IsActive = true
	m.record = rec
	m.state = StateActive
	m.armLocked(m.cfg.Timeout - elapsed)

	m.log.Info("Session restored",
		zap.String("session_id", rec.SessionID),
		zap.Duration("remaining", m.cfg.Timeout-elapsed))
	return rec, true
}

func (m *Manager) discardLocked() {
	if err := m.store.Remove(m.cfg.StorageKey); err != nil {
		m.log.Warn("Failed to remove session record", zap.Error(err))
	}
}

func (m *Manager) persistLocked() {
	data, err := encodeRecord(m.record)
	if err == nil {
		err = m.store.Set(m.cfg.StorageKey, data)
	}
	if err != nil {
		m.log.Warn("Failed to persist session record",
			zap.String("session_id", m.record.SessionID),
			zap.Error(err))
	}
}

func (m *Manager) effectiveTimeoutLocked() time.Duration {
	if m.hidden {
		return m.cfg.BackgroundTimeout
	}
	return m.cfg.Timeout
}

// armLocked replaces the pending timer. The generation bump makes a callback
// from the replaced timer a no-op even if it already started running.
func (m *Manager) armLocked(d time.Duration) {
	m.cancelLocked()
	if m.closed {
		return
	}
	gen := m.timerGen
	m.deadline = m.clock.Now().Add(d)
	m.timer = m.clock.AfterFunc(d, func() { m.expire(gen) })
}

func (m *Manager) cancelLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) notifyStart(rec Record, restored bool) {
	m.mu.Lock()
	observers := append([]StartObserver(nil), m.onStart...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(rec, restored)
	}
}

func (m *Manager) notifyEnd(rec Record, reason EndReason) {
	m.mu.Lock()
	observers := append([]EndObserver(nil), m.onEnd...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(rec, reason)
	}
}

func encodeRecord(rec Record) (string, error) {
	data, err := json.Marshal(persisted{
		SessionID:        rec.SessionID,
		StartTime:        rec.StartTime.UTC().Format(time.RFC3339Nano),
		LastActivityTime: rec.LastActivityTime.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("encode session record: %w", err)
	}
	return string(data), nil
}

func decodeRecord(raw string) (Record, error) {
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if p.SessionID == "" {
		return Record{}, fmt.Errorf("%w: missing sessionId", ErrInvalidRecord)
	}
	start, err := time.Parse(time.RFC3339Nano, p.StartTime)
	if err != nil {
		return Record{}, fmt.Errorf("%w: startTime: %v", ErrInvalidRecord, err)
	}
	last, err := time.Parse(time.RFC3339Nano, p.LastActivityTime)
	if err != nil {
		return Record{}, fmt.Errorf("%w: lastActivityTime: %v", ErrInvalidRecord, err)
	}
	return Record{SessionID: p.SessionID, StartTime: start, LastActivityTime: last}, nil
}
