// internal/auth/navigator.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mlecomte/favsync/internal/browser"
	"github.com/mlecomte/favsync/internal/config"
)

// ErrFormNotReached reports that the bounded navigation loop ran out of
// steps without ever seeing both credential fields.
var ErrFormNotReached = errors.New("auth: credential form not reached")

// NavPhase is the terminal state of a navigation run.
type NavPhase int

const (
	// PhaseFormReady means both credential fields are visible and the
	// caller should submit.
	PhaseFormReady NavPhase = iota
	// PhaseAlreadyAuthenticated means a live session was detected on
	// arrival; submission must be skipped.
	PhaseAlreadyAuthenticated
)

// Navigator drives the page from the login entry URL to a usable credential
// form. The site interposes zero, one or two screens before the form
// (consent dialog, auth method chooser), and which ones appear varies by
// deployment, so the loop re-evaluates the page after every step instead of
// assuming a fixed sequence.
type Navigator struct {
	site   config.SiteConfig
	cfg    config.LoginConfig
	logger *zap.Logger
}

// NewNavigator builds a navigator for the configured site.
func NewNavigator(site config.SiteConfig, cfg config.LoginConfig, logger *zap.Logger) *Navigator {
	return &Navigator{
		site:   site,
		cfg:    cfg,
		logger: logger.Named("navigator"),
	}
}

// Run navigates to the login entry point and advances until the credential
// form is visible, an existing session is detected, or the step budget is
// exhausted.
func (n *Navigator) Run(ctx context.Context, page browser.Page) (NavPhase, error) {
	loginURL := n.site.LoginURL()
	if err := page.Navigate(ctx, loginURL); err != nil {
		return 0, fmt.Errorf("failed to open login page: %w", err)
	}
	if err := page.Settle(ctx, n.cfg.StepWait); err != nil {
		return 0, err
	}

	consentDismissed := false
	for step := 0; step < n.cfg.MaxNavSteps; step++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		authenticated, err := n.isAuthenticated(ctx, page)
		if err != nil {
			return 0, err
		}
		if authenticated {
			n.logger.Info("Existing session detected, skipping credential submission.")
			return PhaseAlreadyAuthenticated, nil
		}

		ready, err := n.formReady(ctx, page)
		if err != nil {
			return 0, err
		}
		if ready {
			n.logger.Debug("Credential form reached.", zap.Int("steps", step))
			return PhaseFormReady, nil
		}

		// One consent-dismiss attempt per run; consent dialogs never
		// reappear after acceptance.
		if !consentDismissed {
			spec, found, err := browser.ResolveLocator(ctx, page, n.logger, consentLocators)
			if err != nil {
				return 0, err
			}
			if found {
				n.logger.Debug("Dismissing consent dialog.", zap.String("selector", spec.Selector))
				if err := page.Click(ctx, spec.Selector); err != nil {
					n.logger.Warn("Consent dismissal click failed.", zap.Error(err))
				}
				consentDismissed = true
				if err := page.Settle(ctx, n.cfg.StepWait); err != nil {
					return 0, err
				}
				continue
			}
			consentDismissed = true
		}

		spec, found, err := browser.ResolveLocator(ctx, page, n.logger, advanceLocators)
		if err != nil {
			return 0, err
		}
		if found {
			n.logger.Debug("Advancing past intermediate screen.", zap.String("selector", spec.Selector))
			if err := page.Click(ctx, spec.Selector); err != nil {
				n.logger.Warn("Intermediate screen click failed.", zap.Error(err))
			}
			if err := page.Settle(ctx, n.cfg.StepWait); err != nil {
				return 0, err
			}
			continue
		}

		// Nothing recognizable yet; the page may still be rendering.
		if err := page.Settle(ctx, n.cfg.StepWait); err != nil {
			return 0, err
		}
	}

	return 0, ErrFormNotReached
}

// isAuthenticated checks for markers of a live session: a member-area URL
// or an avatar/account element.
func (n *Navigator) isAuthenticated(ctx context.Context, page browser.Page) (bool, error) {
	url, err := page.URL(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n.logger.Debug("Could not read URL during authentication check.", zap.Error(err))
	} else if strings.Contains(url, "/member") {
		return true, nil
	}

	_, found, err := browser.ResolveLocator(ctx, page, n.logger, authenticatedLocators)
	if err != nil {
		return false, err
	}
	return found, nil
}

// formReady requires both credential fields to be visible at once.
func (n *Navigator) formReady(ctx context.Context, page browser.Page) (bool, error) {
	_, idFound, err := browser.ResolveLocator(ctx, page, n.logger, identifierLocators)
	if err != nil {
		return false, err
	}
	if !idFound {
		return false, nil
	}
	_, pwFound, err := browser.ResolveLocator(ctx, page, n.logger, secretLocators)
	if err != nil {
		return false, err
	}
	return pwFound, nil
}
