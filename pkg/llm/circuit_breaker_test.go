package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: threshold, ResetAfter: 30 * time.Second})
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb, _ := newTestBreaker(5)

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.ConsecutiveFailures())

	allowed, err := cb.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 3, cb.ConsecutiveFailures())

	allowed, err := cb.Allow()
	assert.False(t, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 1, cb.ConsecutiveFailures())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure()

	clock.Advance(31 * time.Second)

	allowed, err := cb.Allow()
	require.True(t, allowed)
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	allowed, err = cb.Allow()
	assert.False(t, allowed, "only one probe at a time")
	assert.Error(t, err)

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure()
	clock.Advance(31 * time.Second)

	allowed, _ := cb.Allow()
	require.True(t, allowed)

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	allowed, _ = cb.Allow()
	assert.False(t, allowed)
}

func TestCircuitBreaker_CanceledProbeAllowsAnotherProbe(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure()
	clock.Advance(31 * time.Second)

	allowed, _ := cb.Allow()
	require.True(t, allowed)

	cb.RecordCanceled()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 1, cb.ConsecutiveFailures())

	allowed, _ = cb.Allow()
	assert.True(t, allowed)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.ConsecutiveFailures())
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	config := DefaultCircuitBreakerConfig()
	assert.Equal(t, 5, config.Threshold)
	assert.Equal(t, 30*time.Second, config.ResetAfter)

	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	assert.Equal(t, 5, cb.threshold)
	assert.Equal(t, 30*time.Second, cb.resetAfter)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(999).String())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 10, ResetAfter: 100 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = cb.Allow()
				if j%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
				_ = cb.State()
				_ = cb.ConsecutiveFailures()
			}
		}()
	}
	wg.Wait()
}
