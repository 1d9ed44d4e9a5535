// Package page provides the base page object used by step definitions.
// Every lookup that may race the browser goes through a waiter.Waiter, so
// callers only supply selectors.
package page

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tebeka/selenium"

	"github.com/storefront-qa/sf-acceptor/waiter"
)

// DefaultTimeout bounds every implicit wait.
const DefaultTimeout = waiter.DefaultTimeout

const scrollIntoView = "arguments[0].scrollIntoView({block: 'center'});"

// Driver is the subset of selenium.WebDriver a page needs.
type Driver interface {
	waiter.Session
	Get(url string) error
	Title() (string, error)
	SwitchFrame(frame interface{}) error
}

// Page wraps a remote session with waiting element interactions.
type Page struct {
	driver  Driver
	wait    *waiter.Waiter
	baseURL string
	timeout time.Duration

	waiterOpts []waiter.Option
}

type Option func(*Page)

// WithTimeout sets the default wait used by Find and friends.
func WithTimeout(d time.Duration) Option {
	return func(p *Page) {
		p.timeout = d
	}
}

// WithWaiterOptions passes options through to the underlying waiter.
func WithWaiterOptions(opts ...waiter.Option) Option {
	return func(p *Page) {
		p.waiterOpts = append(p.waiterOpts, opts...)
	}
}

// New creates a page bound to driver. Relative paths are resolved against baseURL.
func New(driver Driver, baseURL string, opts ...Option) *Page {
	p := &Page{
		driver:  driver,
		baseURL: baseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wait = waiter.New(driver, append([]waiter.Option{waiter.WithTimeout(p.timeout)}, p.waiterOpts...)...)
	return p
}

// Waiter exposes the page's waiter for custom conditions.
func (p *Page) Waiter() *waiter.Waiter {
	return p.wait
}

// URL resolves path against the base URL. Absolute URLs are returned unchanged.
func (p *Page) URL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() || p.baseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", p.baseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Open navigates to path and waits for the document to finish loading.
func (p *Page) Open(path string) error {
	target, err := p.URL(path)
	if err != nil {
		return err
	}
	if err := p.driver.Get(target); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	return p.WaitForPageToLoad(0)
}

// Find waits up to the default timeout for css to be visible and returns it.
func (p *Page) Find(css string) (selenium.WebElement, error) {
	return p.FindWithin(css, p.timeout)
}

// FindWithin is Find with an explicit timeout.
func (p *Page) FindWithin(css string, timeout time.Duration) (selenium.WebElement, error) {
	if err := p.wait.WaitForElementVisible(css, timeout); err != nil {
		return nil, fmt.Errorf("element %q not found: %w", css, err)
	}
	el, err := p.driver.FindElement(selenium.ByCSSSelector, css)
	if err != nil {
		return nil, fmt.Errorf("element %q not found: %w", css, err)
	}
	return el, nil
}

// FindAll returns every element currently matching css, without waiting.
func (p *Page) FindAll(css string) ([]selenium.WebElement, error) {
	els, err := p.driver.FindElements(selenium.ByCSSSelector, css)
	if waiter.IsNotFound(err) {
		return nil, nil
	}
	return els, err
}

// ScrollTo brings el into the middle of the viewport.
func (p *Page) ScrollTo(el selenium.WebElement) error {
	if _, err := p.driver.ExecuteScript(scrollIntoView, []interface{}{el}); err != nil {
		return fmt.Errorf("failed to scroll to element: %w", err)
	}
	return nil
}

// findAndScroll is the common prefix of every interaction.
func (p *Page) findAndScroll(css string) (selenium.WebElement, error) {
	el, err := p.Find(css)
	if err != nil {
		return nil, err
	}
	if err := p.ScrollTo(el); err != nil {
		return nil, err
	}
	return el, nil
}

func (p *Page) Click(css string) error {
	el, err := p.findAndScroll(css)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("failed to click %q: %w", css, err)
	}
	return nil
}

// EnterText replaces the value of the input matching css with text.
func (p *Page) EnterText(css, text string) error {
	el, err := p.findAndScroll(css)
	if err != nil {
		return err
	}
	if err := el.Clear(); err != nil {
		return fmt.Errorf("failed to clear %q: %w", css, err)
	}
	if err := el.SendKeys(text); err != nil {
		return fmt.Errorf("failed to type into %q: %w", css, err)
	}
	return nil
}

func (p *Page) Text(css string) (string, error) {
	el, err := p.findAndScroll(css)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *Page) Attribute(css, name string) (string, error) {
	el, err := p.findAndScroll(css)
	if err != nil {
		return "", err
	}
	return el.GetAttribute(name)
}

// IsVisible reports whether css becomes visible within the default timeout.
func (p *Page) IsVisible(css string) bool {
	_, err := p.Find(css)
	return err == nil
}

// IsPresent reports whether css is in the DOM right now.
func (p *Page) IsPresent(css string) bool {
	els, err := p.FindAll(css)
	return err == nil && len(els) > 0
}

// IsAbsent reports whether css leaves the DOM within timeout.
func (p *Page) IsAbsent(css string, timeout time.Duration) bool {
	return p.WaitForElementToDisappear(css, timeout) == nil
}

// SelectOption picks the option of the select matching css whose visible text is optionText.
func (p *Page) SelectOption(css, optionText string) error {
	el, err := p.findAndScroll(css)
	if err != nil {
		return err
	}
	options, err := el.FindElements(selenium.ByCSSSelector, "option")
	if err != nil {
		return fmt.Errorf("failed to list options of %q: %w", css, err)
	}
	var seen []string
	for _, opt := range options {
		text, err := opt.Text()
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == optionText {
			return opt.Click()
		}
		seen = append(seen, strings.TrimSpace(text))
	}
	return fmt.Errorf("select %q has no option %q (options: %s)", css, optionText, strings.Join(seen, ", "))
}

func (p *Page) Title() (string, error) {
	return p.driver.Title()
}

func (p *Page) CurrentURL() (string, error) {
	return p.driver.CurrentURL()
}

// WaitForURL waits until the browser is at url. A zero timeout uses the default.
func (p *Page) WaitForURL(url string, timeout time.Duration) error {
	err := p.wait.WaitForURL(url, timeout)
	if waiter.IsTimeout(err) {
		current, _ := p.driver.CurrentURL()
		return fmt.Errorf("expected URL to be %q, but found %q: %w", url, current, err)
	}
	return err
}

// WaitForElementToDisappear waits until nothing matches css.
func (p *Page) WaitForElementToDisappear(css string, timeout time.Duration) error {
	return p.wait.WaitForElementAbsent(css, timeout)
}

// WaitForPageToLoad waits for document.readyState to be complete.
func (p *Page) WaitForPageToLoad(timeout time.Duration) error {
	return p.wait.WaitForPageReady(timeout)
}

// SwitchToFrame moves focus into the iframe matching css.
func (p *Page) SwitchToFrame(css string) error {
	el, err := p.Find(css)
	if err != nil {
		return err
	}
	if err := p.driver.SwitchFrame(el); err != nil {
		return fmt.Errorf("failed to switch to frame %q: %w", css, err)
	}
	return nil
}

// SwitchToDefaultContent moves focus back out of any iframe.
func (p *Page) SwitchToDefaultContent() error {
	if err := p.driver.SwitchFrame(nil); err != nil {
		return errors.Join(errors.New("failed to switch to default content"), err)
	}
	return nil
}
