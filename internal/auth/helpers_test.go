// internal/auth/helpers_test.go
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/config"
)

// scriptedPage is a deterministic in-memory Page. Tests mutate its visible
// set and hooks to replay the page states a real login walks through.
type scriptedPage struct {
	url      string
	visible  map[string]bool
	errText  string
	bodyText string
	csrf     string
	anonID   string
	cookies  []schemas.CookieRecord
	navErr   error

	// onClick and onSettle let tests advance the scripted page state in
	// reaction to the code under test.
	onClick  func(p *scriptedPage, selector string)
	onSettle func(p *scriptedPage)

	navigated   []string
	clicks      []string
	fills       [][2]string
	keys        []string
	typed       []string
	screenshots []string
	settles     int
}

func newScriptedPage() *scriptedPage {
	return &scriptedPage{visible: make(map[string]bool)}
}

func (p *scriptedPage) show(selectors ...string) {
	for _, s := range selectors {
		p.visible[s] = true
	}
}

func (p *scriptedPage) hide(selectors ...string) {
	for _, s := range selectors {
		delete(p.visible, s)
	}
}

func (p *scriptedPage) Navigate(ctx context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	return nil
}

func (p *scriptedPage) URL(ctx context.Context) (string, error) { return p.url, nil }

func (p *scriptedPage) BodyText(ctx context.Context) (string, error) { return p.bodyText, nil }

func (p *scriptedPage) HasVisible(ctx context.Context, selector string) (bool, error) {
	return p.visible[selector], nil
}

func (p *scriptedPage) Click(ctx context.Context, selector string) error {
	p.clicks = append(p.clicks, selector)
	if p.onClick != nil {
		p.onClick(p, selector)
	}
	return nil
}

func (p *scriptedPage) Fill(ctx context.Context, selector, value string) error {
	p.fills = append(p.fills, [2]string{selector, value})
	return nil
}

func (p *scriptedPage) PressKey(ctx context.Context, key string) error {
	p.keys = append(p.keys, key)
	return nil
}

func (p *scriptedPage) TypeActive(ctx context.Context, text string) error {
	p.typed = append(p.typed, text)
	return nil
}

func (p *scriptedPage) Eval(ctx context.Context, script string, out interface{}) error {
	sp, ok := out.(*string)
	if !ok {
		return nil
	}
	switch {
	case strings.Contains(script, "csrf-token"):
		*sp = p.csrf
	case strings.Contains(script, "__INITIAL_STATE__"):
		*sp = p.anonID
	case strings.Contains(script, `role="alert"`):
		*sp = p.errText
	}
	return nil
}

func (p *scriptedPage) Cookies(ctx context.Context) ([]schemas.CookieRecord, error) {
	return p.cookies, nil
}

func (p *scriptedPage) Screenshot(ctx context.Context, path string) error {
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *scriptedPage) Settle(ctx context.Context, d time.Duration) error {
	p.settles++
	if p.onSettle != nil {
		p.onSettle(p)
	}
	return ctx.Err()
}

// Selector shorthands shared across the auth tests. These mirror the head
// of each production cascade.
const (
	selIdentifier = `input[name="email"]`
	selSecret     = `input[type="password"]`
	selSubmit     = `button[type="submit"]`
	selConsent    = `#onetrust-accept-btn-handler`
	selAdvance    = `[data-testid="auth-select-type--login-email"]`
	selAvatar     = `[data-testid*="avatar"]`
	selCaptcha    = `.g-recaptcha`
	selOTP        = `input[autocomplete="one-time-code"]`
)

func testLoginConfig() config.LoginConfig {
	return config.LoginConfig{
		MaxNavSteps:     4,
		StepWait:        time.Millisecond,
		SubmitSettle:    time.Millisecond,
		ClassifyRetries: 3,
		ClassifyDelay:   time.Millisecond,
	}
}

func testSiteConfig() config.SiteConfig {
	return config.SiteConfig{
		BaseURL:               "https://www.example.test",
		LoginPath:             "/auth/login",
		FavoritesPathTemplate: "/api/v2/users/%s/items/favourites",
		FavoritesPagePath:     "/member/items/favourites",
		CookieDomain:          "example",
	}
}
