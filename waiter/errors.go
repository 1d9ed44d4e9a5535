package waiter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tebeka/selenium"
)

var (
	// ErrConditionTimeout is matched by every *TimeoutError via errors.Is.
	ErrConditionTimeout = errors.New("condition timeout")

	// ErrNotFound may be returned by predicates to signal that the queried
	// element does not exist yet.
	ErrNotFound = errors.New("not found")
)

// WebDriver error codes that mean "the thing is not there (yet)".
var notFoundCodes = []string{
	"no such element",
	"stale element reference",
	"no such frame",
}

// TimeoutError is returned when a wait exhausts its budget. LastErr is
// reported in the message but not unwrapped, so a timeout is never
// mistaken for a not-found error.
type TimeoutError struct {
	Description string
	Elapsed     time.Duration
	Timeout     time.Duration
	Polls       int
	LastErr     error // last not-found error seen, if any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s (timeout %s, %d polls)",
		e.Elapsed, e.Description, e.Timeout, e.Polls)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrConditionTimeout
}

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrConditionTimeout)
}

// IsNotFound reports whether err means the queried element is absent,
// either ErrNotFound or a WebDriver "no such element" style error.
// A timeout is never a not-found error, whatever its last poll saw.
func IsNotFound(err error) bool {
	if err == nil || IsTimeout(err) {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var wdErr *selenium.Error
	if errors.As(err, &wdErr) {
		for _, code := range notFoundCodes {
			if wdErr.Err == code {
				return true
			}
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, code := range notFoundCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
