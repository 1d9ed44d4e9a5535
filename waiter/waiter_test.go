package waiter

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingPredicate(trueAfter int, calls *int) Predicate {
	return func(Session) (bool, error) {
		*calls++
		return *calls > trueAfter, nil
	}
}

func TestUntilAlreadyTrue(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk))

	calls := 0
	err := w.Until(Condition{Description: "ready", Predicate: countingPredicate(0, &calls)})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.sleeps, "an already-true predicate must not sleep")
}

func TestUntilNeverTrue(t *testing.T) {
	tests := []struct {
		name      string
		timeout   time.Duration
		interval  time.Duration
		wantPolls int
	}{
		{name: "timeout multiple of interval", timeout: 500 * time.Millisecond, interval: 100 * time.Millisecond, wantPolls: 6},
		{name: "timeout not a multiple", timeout: 250 * time.Millisecond, interval: 100 * time.Millisecond, wantPolls: 4},
		{name: "interval larger than timeout", timeout: 50 * time.Millisecond, interval: time.Second, wantPolls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newFakeClock()
			w := New(&fakeSession{}, WithClock(clk))

			calls := 0
			err := w.Until(Condition{
				Description: "never",
				Predicate:   countingPredicate(1_000_000, &calls),
				Timeout:     tt.timeout,
				Interval:    tt.interval,
			})

			require.Error(t, err)
			assert.True(t, IsTimeout(err))
			assert.ErrorIs(t, err, ErrConditionTimeout)

			var timeoutErr *TimeoutError
			require.True(t, errors.As(err, &timeoutErr))
			assert.Equal(t, "never", timeoutErr.Description)
			assert.GreaterOrEqual(t, timeoutErr.Elapsed, tt.timeout)
			assert.LessOrEqual(t, timeoutErr.Elapsed, tt.timeout+tt.interval)
			assert.Equal(t, tt.wantPolls, timeoutErr.Polls)
			assert.Equal(t, tt.wantPolls, calls)
			assert.Equal(t, tt.timeout, clk.slept())
			for _, d := range clk.sleeps {
				assert.LessOrEqual(t, d, tt.interval)
			}
		})
	}
}

func TestUntilTrueAfterKPolls(t *testing.T) {
	for _, k := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			clk := newFakeClock()
			w := New(&fakeSession{}, WithClock(clk), WithTimeout(2*time.Second), WithInterval(100*time.Millisecond))

			calls := 0
			err := w.Until(Condition{Description: "eventually", Predicate: countingPredicate(k, &calls)})

			require.NoError(t, err)
			assert.Equal(t, k+1, calls)
			assert.Len(t, clk.sleeps, k)
			assert.Equal(t, time.Duration(k)*100*time.Millisecond, clk.slept())
		})
	}
}

func TestUntilNotFoundIsRetried(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk))

	calls := 0
	err := w.Until(Condition{
		Description: "element",
		Predicate: func(Session) (bool, error) {
			calls++
			if calls < 3 {
				return false, noSuchElement()
			}
			return true, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilNotFoundUntilTimeout(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk))

	err := w.Until(Condition{
		Description: "missing",
		Predicate:   func(Session) (bool, error) { return false, ErrNotFound },
		Timeout:     300 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.ErrorIs(t, timeoutErr.LastErr, ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestUntilOtherErrorAborts(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk))
	sessionErr := errors.New("invalid session id")

	calls := 0
	err := w.Until(Condition{
		Description: "broken",
		Predicate: func(Session) (bool, error) {
			calls++
			return false, sessionErr
		},
	})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, sessionErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.sleeps)
}

func TestUntilNilPredicate(t *testing.T) {
	w := New(&fakeSession{}, WithClock(newFakeClock()))
	require.Error(t, w.Until(Condition{Description: "nothing"}))
}

func TestDefaultsAndMillisecondTruncation(t *testing.T) {
	w := New(&fakeSession{})
	assert.Equal(t, DefaultTimeout, w.timeout)
	assert.Equal(t, DefaultInterval, w.interval)

	w = New(&fakeSession{}, WithTimeout(1500*time.Microsecond), WithInterval(-time.Second))
	assert.Equal(t, time.Millisecond, w.timeout)
	assert.Equal(t, DefaultInterval, w.interval)

	w = New(&fakeSession{}, WithTimeout(900*time.Microsecond), WithInterval(time.Nanosecond))
	assert.Equal(t, time.Millisecond, w.timeout, "positive sub-millisecond timeouts clamp to 1ms")
	assert.Equal(t, time.Millisecond, w.interval)
}

func TestSubMillisecondConditionTimeout(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk))

	err := w.Until(Condition{
		Description: "never",
		Predicate:   func(Session) (bool, error) { return false, nil },
		Timeout:     500 * time.Microsecond,
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, time.Millisecond, clk.slept())
}

func TestNestedTimeoutAbortsOuterWait(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk))

	calls := 0
	err := w.Until(Condition{
		Description: "outer",
		Predicate: func(s Session) (bool, error) {
			calls++
			inner := New(s, WithClock(clk))
			return false, inner.Until(Condition{
				Description: "inner",
				Predicate:   func(Session) (bool, error) { return false, ErrNotFound },
				Timeout:     100 * time.Millisecond,
			})
		},
		Timeout: time.Second,
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "outer")
	assert.True(t, IsTimeout(err), "the inner timeout is returned wrapped")
}

func TestConditionOverridesWaiterDefaults(t *testing.T) {
	clk := newFakeClock()
	w := New(&fakeSession{}, WithClock(clk), WithTimeout(10*time.Second))

	err := w.Until(Condition{
		Description: "never",
		Predicate:   func(Session) (bool, error) { return false, nil },
		Timeout:     200 * time.Millisecond,
		Interval:    50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, 200*time.Millisecond, clk.slept())
	assert.Len(t, clk.sleeps, 4)
}

func TestUntilWithSystemClock(t *testing.T) {
	w := New(&fakeSession{}, WithInterval(10*time.Millisecond))

	start := time.Now()
	require.NoError(t, w.Until(Condition{
		Description: "immediate",
		Predicate:   func(Session) (bool, error) { return true, nil },
	}))
	assert.Less(t, time.Since(start), 10*time.Millisecond)

	start = time.Now()
	err := w.Until(Condition{
		Description: "never",
		Predicate:   func(Session) (bool, error) { return false, nil },
		Timeout:     50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
