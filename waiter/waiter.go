// Package waiter reconciles the eventually-consistent state of a remote
// browser page with synchronous step execution. A Waiter polls a
// side-effect-free predicate until it holds or a deadline passes.
package waiter

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/clock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tebeka/selenium"
)

const (
	DefaultTimeout  = 5000 * time.Millisecond
	DefaultInterval = 100 * time.Millisecond
)

// Session is the subset of the WebDriver protocol predicates may query.
// Any selenium.WebDriver satisfies it.
type Session interface {
	FindElement(by, value string) (selenium.WebElement, error)
	FindElements(by, value string) ([]selenium.WebElement, error)
	CurrentURL() (string, error)
	ExecuteScript(script string, args []interface{}) (interface{}, error)
}

// Clock is the time source used for deadlines and poll sleeps.
// clock.SystemClock satisfies it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Predicate reports whether the remote session is in the desired state.
// It must be idempotent: it is evaluated repeatedly until it holds.
type Predicate func(s Session) (bool, error)

// Condition describes one bounded wait. Zero Timeout or Interval fall back
// to the Waiter's defaults.
type Condition struct {
	Description string
	Predicate   Predicate
	Timeout     time.Duration
	Interval    time.Duration
}

// Waiter evaluates conditions against a single remote session.
// It is not safe for concurrent use; a session belongs to one worker.
type Waiter struct {
	session  Session
	clock    Clock
	timeout  time.Duration
	interval time.Duration
	log      log.Logger
}

// Option configures a Waiter
type Option func(*Waiter)

// WithTimeout sets the default total wait time
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) { w.timeout = d }
}

// WithInterval sets the default poll interval
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) { w.interval = d }
}

// WithClock replaces the system clock
func WithClock(c Clock) Option {
	return func(w *Waiter) { w.clock = c }
}

// WithLogger sets the logger used for wait diagnostics
func WithLogger(l log.Logger) Option {
	return func(w *Waiter) { w.log = l }
}

// New creates a Waiter bound to session.
func New(session Session, opts ...Option) *Waiter {
	w := &Waiter{
		session:  session,
		clock:    clock.SystemClock,
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
		log:      log.Root(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.timeout = normalize(w.timeout, DefaultTimeout)
	w.interval = normalize(w.interval, DefaultInterval)
	return w
}

// Session returns the session the waiter polls.
func (w *Waiter) Session() Session {
	return w.session
}

// Until blocks until cond's predicate holds or its timeout elapses.
//
// The predicate is evaluated once immediately and then once per interval.
// The final sleep is cut short at the deadline, so a predicate that never
// holds fails no earlier than the timeout and no later than one interval
// after it. Not-found errors count as "not yet"; any other predicate error
// ends the wait at once.
//
// Success only means the predicate held at the instant of some poll.
func (w *Waiter) Until(cond Condition) error {
	if cond.Predicate == nil {
		return errors.New("condition has no predicate")
	}
	timeout := normalize(cond.Timeout, w.timeout)
	interval := normalize(cond.Interval, w.interval)

	start := w.clock.Now()
	deadline := start.Add(timeout)
	polls := 0
	var lastErr error

	for {
		polls++
		ok, err := cond.Predicate(w.session)
		switch {
		case err == nil && ok:
			w.log.Trace("Condition met", "condition", cond.Description, "polls", polls,
				"elapsed", w.clock.Now().Sub(start))
			return nil
		case err != nil && !IsNotFound(err):
			return fmt.Errorf("condition %q: %w", cond.Description, err)
		case err != nil:
			lastErr = err
		}

		now := w.clock.Now()
		if !now.Before(deadline) {
			elapsed := now.Sub(start).Truncate(time.Millisecond)
			w.log.Debug("Condition timed out", "condition", cond.Description, "polls", polls,
				"elapsed", elapsed, "timeout", timeout)
			return &TimeoutError{
				Description: cond.Description,
				Elapsed:     elapsed,
				Timeout:     timeout,
				Polls:       polls,
				LastErr:     lastErr,
			}
		}
		<-w.clock.After(min(interval, deadline.Sub(now)))
	}
}

// normalize truncates d to whole milliseconds. Non-positive values take def;
// positive values never drop below one millisecond.
func normalize(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return max(d.Truncate(time.Millisecond), time.Millisecond)
}
