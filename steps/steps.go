// Package steps binds the generic storefront step phrases to page operations.
package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/storefront-qa/sf-acceptor/page"
	"github.com/storefront-qa/sf-acceptor/scenario"
)

// PageTitleKey is where "I memorize the page title" stores the title.
const PageTitleKey = "pageTitle"

// DefaultPages maps the page names used in features to paths.
var DefaultPages = map[string]string{
	"main": "/",
	"home": "/",
}

var errNoScenarioData = errors.New("no scenario data in context")

// Steps holds the step definitions for one scenario context.
type Steps struct {
	page  func() *page.Page
	pages map[string]string
}

// New creates step definitions that act on the page returned by pageFn.
// Page names in "user opens" steps are looked up in pages.
func New(pageFn func() *page.Page, pages map[string]string) *Steps {
	if pages == nil {
		pages = DefaultPages
	}
	return &Steps{page: pageFn, pages: pages}
}

// Register binds the default steps to sc.
func Register(sc *godog.ScenarioContext, pageFn func() *page.Page) {
	New(pageFn, nil).Register(sc)
}

// Register binds every step phrase to sc and gives each scenario fresh data.
func (s *Steps) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return scenario.WithData(ctx, scenario.NewData()), nil
	})

	sc.Step(`^user opens "([^"]*)" page$`, s.userOpensPage)
	sc.Step(`^I open the home page$`, s.iOpenTheHomePage)
	sc.Step(`^title contains "([^"]*)"$`, s.titleContains)
	sc.Step(`^I memorize the page title$`, s.iMemorizeThePageTitle)
	sc.Step(`^the memorized page title is kept$`, s.theMemorizedPageTitleIsKept)
	sc.Step(`^user clicks on "([^"]*)"$`, s.userClicksOn)
	sc.Step(`^user enters "([^"]*)" into "([^"]*)"$`, s.userEntersInto)
	sc.Step(`^user selects "([^"]*)" from "([^"]*)"$`, s.userSelectsFrom)
	sc.Step(`^element "([^"]*)" is visible$`, s.elementIsVisible)
	sc.Step(`^element "([^"]*)" disappears$`, s.elementDisappears)
	sc.Step(`^the URL should be "([^"]*)"$`, s.theURLShouldBe)
	sc.Step(`^the text of "([^"]*)" should contain "([^"]*)"$`, s.theTextOfShouldContain)
}

// resolvePage maps a page name, or a literal path, to a path.
func (s *Steps) resolvePage(name string) (string, error) {
	if path, ok := s.pages[strings.ToLower(name)]; ok {
		return path, nil
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "://") {
		return name, nil
	}
	return "", fmt.Errorf("unknown page: %s", name)
}

func (s *Steps) userOpensPage(name string) error {
	path, err := s.resolvePage(name)
	if err != nil {
		return err
	}
	return s.page().Open(path)
}

func (s *Steps) iOpenTheHomePage() error {
	return s.userOpensPage("home")
}

func (s *Steps) titleContains(want string) error {
	title, err := s.page().Title()
	if err != nil {
		return err
	}
	if !strings.Contains(title, want) {
		return fmt.Errorf("title %q does not contain %q", title, want)
	}
	return nil
}

func (s *Steps) iMemorizeThePageTitle(ctx context.Context) error {
	data, ok := scenario.FromContext(ctx)
	if !ok {
		return errNoScenarioData
	}
	title, err := s.page().Title()
	if err != nil {
		return err
	}
	data.Set(PageTitleKey, title)
	return nil
}

func (s *Steps) theMemorizedPageTitleIsKept(ctx context.Context) error {
	data, ok := scenario.FromContext(ctx)
	if !ok {
		return errNoScenarioData
	}
	memorized, ok := data.String(PageTitleKey)
	if !ok {
		return errors.New("no page title was memorized in this scenario")
	}
	title, err := s.page().Title()
	if err != nil {
		return err
	}
	if title != memorized {
		return fmt.Errorf("page title changed from %q to %q", memorized, title)
	}
	return nil
}

func (s *Steps) userClicksOn(css string) error {
	return s.page().Click(css)
}

func (s *Steps) userEntersInto(text, css string) error {
	return s.page().EnterText(css, text)
}

func (s *Steps) userSelectsFrom(option, css string) error {
	return s.page().SelectOption(css, option)
}

func (s *Steps) elementIsVisible(css string) error {
	_, err := s.page().Find(css)
	return err
}

func (s *Steps) elementDisappears(css string) error {
	return s.page().WaitForElementToDisappear(css, 0)
}

func (s *Steps) theURLShouldBe(want string) error {
	target, err := s.page().URL(want)
	if err != nil {
		return err
	}
	return s.page().WaitForURL(target, 0)
}

func (s *Steps) theTextOfShouldContain(css, want string) error {
	text, err := s.page().Text(css)
	if err != nil {
		return err
	}
	if !strings.Contains(text, want) {
		return fmt.Errorf("text of %q is %q, which does not contain %q", css, text, want)
	}
	return nil
}
