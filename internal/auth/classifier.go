// internal/auth/classifier.go
package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/browser"
	"github.com/mlecomte/favsync/internal/config"
)

// Probe inspects the page for one outcome marker. It returns whether the
// marker matched and an optional diagnostic string (e.g. the error banner
// text).
type Probe func(ctx context.Context, page browser.Page, logger *zap.Logger) (bool, string, error)

// Marker binds an outcome to its detection probe. Markers are evaluated in
// list order and the first match wins, so the order encodes priority:
// challenges outrank error banners, which outrank success signals. A page
// showing both a captcha and an error message is a challenge.
type Marker struct {
	Name      string
	Kind      schemas.OutcomeKind
	Challenge schemas.ChallengeKind
	Probe     Probe
}

// Classifier decides what a login attempt produced by running an ordered
// marker list against the post-submit page. When no marker matches it
// retries a bounded number of times with a short delay, since the page may
// still be mid-transition.
type Classifier struct {
	markers []Marker
	retries int
	delay   time.Duration
	logger  *zap.Logger
}

// NewClassifier builds a classifier with the default marker set.
func NewClassifier(site config.SiteConfig, cfg config.LoginConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		markers: DefaultMarkers(site),
		retries: cfg.ClassifyRetries,
		delay:   cfg.ClassifyDelay,
		logger:  logger.Named("classifier"),
	}
}

// NewClassifierWithMarkers builds a classifier with a caller-supplied marker
// list. Used by tests and by deployments with site-specific markers.
func NewClassifierWithMarkers(markers []Marker, cfg config.LoginConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		markers: markers,
		retries: cfg.ClassifyRetries,
		delay:   cfg.ClassifyDelay,
		logger:  logger.Named("classifier"),
	}
}

// Classify runs the marker list against the page. Only an unknown result is
// retried; every determinate outcome returns immediately.
func (c *Classifier) Classify(ctx context.Context, page browser.Page) schemas.LoginOutcome {
	attempts := c.retries
	if attempts < 1 {
		attempts = 1
	}

	var outcome schemas.LoginOutcome
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := page.Settle(ctx, c.delay); err != nil {
				return outcome
			}
			c.logger.Debug("Retrying outcome classification.", zap.Int("attempt", attempt+1))
		}
		outcome = c.classifyOnce(ctx, page)
		if outcome.Kind != schemas.OutcomeUnknownFailure {
			return outcome
		}
		if ctx.Err() != nil {
			return outcome
		}
	}

	if snippet := pageSnippet(ctx, page); snippet != "" {
		c.logger.Debug("Unclassified page sample.", zap.String("text", snippet))
		outcome.Diagnostic = "no outcome marker matched; page text: " + snippet
	}
	return outcome
}

// snippetLimit caps the body-text sample carried on an unclassified outcome.
const snippetLimit = 200

// pageSnippet samples the rendered body text so an unclassified page leaves
// something actionable in the report.
func pageSnippet(ctx context.Context, page browser.Page) string {
	text, err := page.BodyText(ctx)
	if err != nil {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > snippetLimit {
		text = string(r[:snippetLimit])
	}
	return text
}

func (c *Classifier) classifyOnce(ctx context.Context, page browser.Page) schemas.LoginOutcome {
	for _, m := range c.markers {
		matched, diag, err := m.Probe(ctx, page, c.logger)
		if err != nil {
			if ctx.Err() != nil {
				return schemas.UnknownFailure("classification aborted: " + ctx.Err().Error())
			}
			c.logger.Debug("Marker probe failed.", zap.String("marker", m.Name), zap.Error(err))
			continue
		}
		if !matched {
			continue
		}

		c.logger.Debug("Outcome marker matched.", zap.String("marker", m.Name))
		switch m.Kind {
		case schemas.OutcomeSuccess:
			return schemas.Success(nil)
		case schemas.OutcomeInvalidCredentials:
			outcome := schemas.InvalidCredentials()
			outcome.Diagnostic = diag
			return outcome
		case schemas.OutcomeChallengeRequired:
			return schemas.ChallengeRequired(m.Challenge)
		}
	}
	return schemas.UnknownFailure("no outcome marker matched")
}

// DefaultMarkers returns the standard marker list in priority order.
func DefaultMarkers(site config.SiteConfig) []Marker {
	return []Marker{
		{
			Name:      "captcha",
			Kind:      schemas.OutcomeChallengeRequired,
			Challenge: schemas.ChallengeCaptcha,
			Probe:     cascadeProbe(captchaLocators),
		},
		{
			Name:      "two-factor",
			Kind:      schemas.OutcomeChallengeRequired,
			Challenge: schemas.ChallengeTwoFactor,
			Probe:     cascadeProbe(twoFactorLocators),
		},
		{
			Name:  "error-banner",
			Kind:  schemas.OutcomeInvalidCredentials,
			Probe: errorBannerProbe(site.LoginPath),
		},
		{
			Name:  "authenticated",
			Kind:  schemas.OutcomeSuccess,
			Probe: successProbe(site.LoginPath),
		},
	}
}

// cascadeProbe matches when any selector in the cascade is visible.
func cascadeProbe(cascade []browser.LocatorSpec) Probe {
	return func(ctx context.Context, page browser.Page, logger *zap.Logger) (bool, string, error) {
		spec, found, err := browser.ResolveLocator(ctx, page, logger, cascade)
		if err != nil {
			return false, "", err
		}
		if !found {
			return false, "", nil
		}
		return true, spec.Description, nil
	}
}

// errorBannerProbe matches when the page shows an error-flavored element
// with text, and carries that text as the diagnostic. It only fires while
// the tab is still on the login URL: rejected credentials keep the user on
// the form, whereas an authenticated landing page may legitimately contain
// alert-flavored elements (promos, dismissed notices) that say nothing
// about the login.
func errorBannerProbe(loginPath string) Probe {
	return func(ctx context.Context, page browser.Page, logger *zap.Logger) (bool, string, error) {
		if loginPath != "" {
			url, err := page.URL(ctx)
			if err != nil {
				return false, "", err
			}
			if url != "" && !strings.Contains(url, loginPath) {
				return false, "", nil
			}
		}

		var text string
		if err := page.Eval(ctx, errorSniffScript, &text); err != nil {
			return false, "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return false, "", nil
		}
		return true, text, nil
	}
}

// successProbe matches on an authenticated-session element, or failing
// that, on having left the login URL entirely.
func successProbe(loginPath string) Probe {
	return func(ctx context.Context, page browser.Page, logger *zap.Logger) (bool, string, error) {
		_, found, err := browser.ResolveLocator(ctx, page, logger, authenticatedLocators)
		if err != nil {
			return false, "", err
		}
		if found {
			return true, "authenticated element visible", nil
		}

		url, err := page.URL(ctx)
		if err != nil {
			return false, "", err
		}
		if loginPath != "" && url != "" && !strings.Contains(url, loginPath) {
			return true, "left the login page", nil
		}
		return false, "", nil
	}
}
