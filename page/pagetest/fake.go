// Package pagetest provides an in-memory browser for exercising page objects
// and step definitions without a WebDriver grid.
package pagetest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tebeka/selenium"
)

// Element is a fake DOM element. Unset WebElement methods panic.
type Element struct {
	selenium.WebElement

	Displayed bool
	Content   string
	Attrs     map[string]string
	Value     string
	Children  []*Element
	Clicks    int
	// OnClick runs after every click, e.g. to navigate or mutate the page.
	OnClick func()
}

func (e *Element) Click() error {
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *Element) SendKeys(keys string) error {
	e.Value += keys
	return nil
}

func (e *Element) Clear() error {
	e.Value = ""
	return nil
}

func (e *Element) Text() (string, error) {
	return e.Content, nil
}

func (e *Element) GetAttribute(name string) (string, error) {
	if v, ok := e.Attrs[name]; ok {
		return v, nil
	}
	return "", &selenium.Error{Err: "no such attribute", Message: name}
}

func (e *Element) IsDisplayed() (bool, error) {
	return e.Displayed, nil
}

func (e *Element) FindElements(by, value string) ([]selenium.WebElement, error) {
	out := make([]selenium.WebElement, 0, len(e.Children))
	for _, c := range e.Children {
		out = append(out, c)
	}
	return out, nil
}

// Browser is a fake remote session holding a flat css -> elements DOM.
type Browser struct {
	mu sync.Mutex

	URL        string
	PageTitle  string
	ReadyState string
	Frame      any
	Scripts    []string
	Visited    []string
	Quits      int

	dom map[string][]*Element
	// OnGet runs after navigation, e.g. to populate the DOM for the new page.
	OnGet func(b *Browser, url string)
}

// NewBrowser returns an empty, fully loaded page.
func NewBrowser() *Browser {
	return &Browser{
		ReadyState: "complete",
		dom:        make(map[string][]*Element),
	}
}

// Set places elements under css, replacing any previous ones.
func (b *Browser) Set(css string, els ...*Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dom[css] = els
}

// Remove deletes every element under css.
func (b *Browser) Remove(css string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.dom, css)
}

func (b *Browser) Get(url string) error {
	b.mu.Lock()
	b.URL = url
	b.Visited = append(b.Visited, url)
	hook := b.OnGet
	b.mu.Unlock()
	if hook != nil {
		hook(b, url)
	}
	return nil
}

func (b *Browser) Title() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.PageTitle, nil
}

func (b *Browser) CurrentURL() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.URL, nil
}

func (b *Browser) FindElement(by, value string) (selenium.WebElement, error) {
	if by != selenium.ByCSSSelector {
		return nil, fmt.Errorf("unsupported locator %q", by)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	els := b.dom[value]
	if len(els) == 0 {
		return nil, &selenium.Error{Err: "no such element", Message: "Unable to locate element: " + value}
	}
	return els[0], nil
}

func (b *Browser) FindElements(by, value string) ([]selenium.WebElement, error) {
	if by != selenium.ByCSSSelector {
		return nil, fmt.Errorf("unsupported locator %q", by)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]selenium.WebElement, 0, len(b.dom[value]))
	for _, el := range b.dom[value] {
		out = append(out, el)
	}
	return out, nil
}

func (b *Browser) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Scripts = append(b.Scripts, script)
	if strings.Contains(script, "document.readyState") {
		return b.ReadyState == "complete", nil
	}
	return nil, nil
}

func (b *Browser) SwitchFrame(frame interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Frame = frame
	return nil
}

// Close records that the session was closed.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Quits++
	return nil
}
