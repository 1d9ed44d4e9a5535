package waiter

import (
	"sync"
	"time"

	"github.com/tebeka/selenium"
)

// fakeClock advances instantly on every After call and records the sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

// fakeSession lets each test script the remote session responses.
type fakeSession struct {
	findElement   func(by, value string) (selenium.WebElement, error)
	findElements  func(by, value string) ([]selenium.WebElement, error)
	currentURL    func() (string, error)
	executeScript func(script string, args []interface{}) (interface{}, error)
}

func (s *fakeSession) FindElement(by, value string) (selenium.WebElement, error) {
	return s.findElement(by, value)
}

func (s *fakeSession) FindElements(by, value string) ([]selenium.WebElement, error) {
	return s.findElements(by, value)
}

func (s *fakeSession) CurrentURL() (string, error) {
	return s.currentURL()
}

func (s *fakeSession) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	return s.executeScript(script, args)
}

// fakeElement implements the parts of selenium.WebElement the conditions use.
type fakeElement struct {
	selenium.WebElement
	displayed bool
	text      string
}

func (e *fakeElement) IsDisplayed() (bool, error) {
	return e.displayed, nil
}

func (e *fakeElement) Text() (string, error) {
	return e.text, nil
}

func noSuchElement() error {
	return &selenium.Error{Err: "no such element", Message: "Unable to locate element"}
}
