package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func contextAt(clock *fakeClock, attempt uint, elapsed time.Duration) *Context {
	rc := NewContext(clock)
	for rc.AttemptNum() < attempt {
		rc.AddAttempt()
	}
	clock.Advance(elapsed)
	return rc
}

func TestContextStartsAtOne(t *testing.T) {
	clock := newFakeClock()
	rc := NewContext(clock)

	assert.Equal(t, uint(1), rc.AttemptNum())
	assert.Equal(t, clock.Now(), rc.StartTime())
	assert.Zero(t, rc.Elapsed())

	rc.AddAttempt()
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, uint(2), rc.AttemptNum())
	assert.Equal(t, 1500*time.Millisecond, rc.Elapsed())

	clock.Advance(time.Second)
	assert.Equal(t, 2500*time.Millisecond, rc.Elapsed(), "elapsed is recomputed on every read")
}

func TestStopNever(t *testing.T) {
	rc := contextAt(newFakeClock(), 1000, time.Hour)
	assert.False(t, StopNever{}.StopExecution(rc))
}

func TestStopAttemptsBoundaries(t *testing.T) {
	for n := uint(1); n <= 10; n++ {
		stop := StopAttempts{Attempts: n}
		for attempt := uint(1); attempt <= n+5; attempt++ {
			rc := contextAt(newFakeClock(), attempt, 0)
			if attempt < n {
				assert.False(t, stop.StopExecution(rc), "n=%d attempt=%d", n, attempt)
			} else {
				assert.True(t, stop.StopExecution(rc), "n=%d attempt=%d", n, attempt)
			}
		}
	}
}

func TestStopDuration(t *testing.T) {
	stop := StopDuration{Seconds: 2.5}

	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{0, false},
		{2499 * time.Millisecond, false},
		{2500 * time.Millisecond, true},
		{time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			rc := contextAt(newFakeClock(), 1, tt.elapsed)
			assert.Equal(t, tt.want, stop.StopExecution(rc))
		})
	}
}

func TestStopAttemptsOrDurationEqualsOr(t *testing.T) {
	attempts := StopAttempts{Attempts: 4}
	duration := StopDuration{Seconds: 3}
	combined := StopAttemptsOrDuration{Attempts: attempts, Duration: duration}

	for attempt := uint(1); attempt <= 8; attempt++ {
		for ms := 0; ms <= 6000; ms += 250 {
			elapsed := time.Duration(ms) * time.Millisecond
			clock := newFakeClock()
			rc := contextAt(clock, attempt, elapsed)

			want := attempts.StopExecution(rc) || duration.StopExecution(rc)
			assert.Equal(t, want, combined.StopExecution(rc), "attempt=%d elapsed=%v", attempt, elapsed)
		}
	}
}

func TestStopStrings(t *testing.T) {
	assert.Equal(t, "never", StopNever{}.String())
	assert.Equal(t, "attempts(3) | duration(1.5s)", StopAttemptsOrDuration{
		Attempts: StopAttempts{Attempts: 3},
		Duration: StopDuration{Seconds: 1.5},
	}.String())
}
