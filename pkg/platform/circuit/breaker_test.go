package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay feeds outcomes to b, 'f' for a failed registry call and 's' for a
// successful one, and reports whether the circuit is open after each.
func replay(b *Breaker, outcomes string) []bool {
	open := make([]bool, 0, len(outcomes))
	for _, o := range outcomes {
		switch o {
		case 'f':
			b.RecordFailure()
		case 's':
			b.RecordSuccess()
		}
		open = append(open, b.IsOpen())
	}
	return open
}

func TestBreakerSequences(t *testing.T) {
	cases := []struct {
		name      string
		failures  int
		successes int
		outcomes  string
		open      []bool
	}{
		{
			name:     "opens on the threshold failure",
			failures: 3, successes: 1,
			outcomes: "fff",
			open:     []bool{false, false, true},
		},
		{
			name:     "success while closed resets the failure count",
			failures: 3, successes: 1,
			outcomes: "ffsfff",
			open:     []bool{false, false, false, false, false, true},
		},
		{
			name:     "closes after enough probe successes",
			failures: 1, successes: 2,
			outcomes: "fss",
			open:     []bool{true, true, false},
		},
		{
			name:     "failure while open restarts the success count",
			failures: 1, successes: 3,
			outcomes: "fssfsss",
			open:     []bool{true, true, true, true, true, true, false},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New("registry", WithFailureThreshold(tc.failures), WithSuccessThreshold(tc.successes))
			assert.Equal(t, tc.open, replay(b, tc.outcomes))
		})
	}
}

func TestBreakerStateChanges(t *testing.T) {
	b := New("registry", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "registry", b.Name())
	assert.Equal(t, StateClosed, b.State())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	_, change = b.RecordFailure()
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreakerAllow(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	b := New("registry", WithFailureThreshold(1), WithCooldown(time.Minute))
	require.True(t, b.Allow(now))

	b.RecordFailure()
	assert.False(t, b.Allow(time.Now()), "cooling down")
	assert.True(t, b.Allow(time.Now().Add(2*time.Minute)), "probe after cooldown")

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow(now))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
}
