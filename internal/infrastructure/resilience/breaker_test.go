package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/maxwidget/internal/shared/clock"
)

var (
	errUpstream = errors.New("upstream down")
	errRejected = errors.New("rejected by upstream")
)

func run(b *Breaker, outcomes ...error) {
	for _, out := range outcomes {
		_ = b.Execute(func() error { return out })
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		outcomes      []error
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Interval: time.Minute},
			outcomes:      []error{nil, nil, nil},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 3 },
			},
			outcomes:      []error{errUpstream, errUpstream, errUpstream},
			expectedState: StateOpen,
		},
		{
			name: "success resets the consecutive count",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 3 },
			},
			outcomes:      []error{errUpstream, errUpstream, nil, errUpstream},
			expectedState: StateClosed,
		},
		{
			name: "classified errors do not trip",
			settings: Settings{
				ReadyToTrip:  func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
				IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errRejected) },
			},
			outcomes:      []error{errRejected, errRejected, errRejected},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", tt.settings)
			run(b, tt.outcomes...)
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerOpenRejects(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})
	run(b, errUpstream)

	called := false
	err := b.Execute(func() error { called = true; return nil })

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var transitions []string

	b := New("max-api", Settings{
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
		Clock: fake,
	})

	run(b, errUpstream, errUpstream)
	require.Equal(t, StateOpen, b.State())

	fake.Advance(29 * time.Second)
	assert.Equal(t, StateOpen, b.State())

	fake.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	run(b, nil)
	assert.Equal(t, StateHalfOpen, b.State())
	run(b, nil)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New("test", Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Clock:       fake,
	})

	run(b, errUpstream)
	fake.Advance(time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	run(b, errUpstream)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New("test", Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Clock:       fake,
	})
	run(b, errUpstream)
	fake.Advance(time.Second)

	var inner error
	err := b.Execute(func() error {
		inner = b.Execute(func() error { return nil })
		return nil
	})

	assert.NoError(t, err)
	assert.ErrorIs(t, inner, ErrTooManyRequests)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := New("test", Settings{Interval: time.Minute, Clock: fake})

	run(b, errUpstream, errUpstream)
	assert.Equal(t, uint32(2), b.Counts().ConsecutiveFailures)

	fake.Advance(time.Minute)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())
}

func TestCallReturnsValue(t *testing.T) {
	b := New("test", Settings{})

	v, err := Call(b, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Call(b, func() (int, error) { return 0, errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, uint32(1), b.Counts().TotalFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, uint32(1), b.Counts().TotalFailures)
}
