package waiter

import (
	"fmt"
	"strings"
	"time"

	"github.com/tebeka/selenium"
)

// ElementVisible holds when an element matching css exists and is displayed.
func ElementVisible(css string) Condition {
	return Condition{
		Description: fmt.Sprintf("element %q to be visible", css),
		Predicate: func(s Session) (bool, error) {
			el, err := s.FindElement(selenium.ByCSSSelector, css)
			if err != nil {
				return false, err
			}
			return el.IsDisplayed()
		},
	}
}

// ElementAbsent holds when no element matches css.
func ElementAbsent(css string) Condition {
	return Condition{
		Description: fmt.Sprintf("element %q to be absent", css),
		Predicate: func(s Session) (bool, error) {
			els, err := s.FindElements(selenium.ByCSSSelector, css)
			if IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			return len(els) == 0, nil
		},
	}
}

// PageReady holds when document.readyState is "complete".
func PageReady() Condition {
	return ScriptTrue("document ready state to be complete", "return document.readyState === 'complete';")
}

// URLEquals holds when the session's current URL is exactly url.
func URLEquals(url string) Condition {
	return Condition{
		Description: fmt.Sprintf("URL to equal %q", url),
		Predicate: func(s Session) (bool, error) {
			current, err := s.CurrentURL()
			if err != nil {
				return false, err
			}
			return current == url, nil
		},
	}
}

// TextPresent holds when the element matching css contains text.
func TextPresent(css, text string) Condition {
	return Condition{
		Description: fmt.Sprintf("element %q to contain text %q", css, text),
		Predicate: func(s Session) (bool, error) {
			el, err := s.FindElement(selenium.ByCSSSelector, css)
			if err != nil {
				return false, err
			}
			got, err := el.Text()
			if err != nil {
				return false, err
			}
			return strings.Contains(got, text), nil
		},
	}
}

// ScriptTrue holds when script, executed in the page, returns boolean true.
func ScriptTrue(description, script string) Condition {
	return Condition{
		Description: description,
		Predicate: func(s Session) (bool, error) {
			res, err := s.ExecuteScript(script, nil)
			if err != nil {
				return false, err
			}
			ok, _ := res.(bool)
			return ok, nil
		},
	}
}

// WithTimeout returns a copy of c bounded by timeout.
func (c Condition) WithTimeout(timeout time.Duration) Condition {
	c.Timeout = timeout
	return c
}

// WithInterval returns a copy of c polled every interval.
func (c Condition) WithInterval(interval time.Duration) Condition {
	c.Interval = interval
	return c
}

// WaitForElementVisible waits for ElementVisible(css).
func (w *Waiter) WaitForElementVisible(css string, timeout time.Duration) error {
	return w.Until(ElementVisible(css).WithTimeout(timeout))
}

// WaitForElementAbsent waits for ElementAbsent(css).
func (w *Waiter) WaitForElementAbsent(css string, timeout time.Duration) error {
	return w.Until(ElementAbsent(css).WithTimeout(timeout))
}

// WaitForPageReady waits for PageReady().
func (w *Waiter) WaitForPageReady(timeout time.Duration) error {
	return w.Until(PageReady().WithTimeout(timeout))
}

// WaitForURL waits for URLEquals(url).
func (w *Waiter) WaitForURL(url string, timeout time.Duration) error {
	return w.Until(URLEquals(url).WithTimeout(timeout))
}

// WaitForText waits for TextPresent(css, text).
func (w *Waiter) WaitForText(css, text string, timeout time.Duration) error {
	return w.Until(TextPresent(css, text).WithTimeout(timeout))
}
