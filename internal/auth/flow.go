// internal/auth/flow.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/browser"
	"github.com/mlecomte/favsync/internal/config"
)

// Flow runs a complete login attempt: navigate to the form, submit the
// credentials, classify the result, and on success harvest the session
// artifacts. It is the single entry point the pipeline uses for
// authentication.
type Flow struct {
	navigator  *Navigator
	submitter  *Submitter
	classifier *Classifier
	site       config.SiteConfig
	logger     *zap.Logger
}

// NewFlow wires up the default navigator, submitter and classifier.
func NewFlow(site config.SiteConfig, cfg config.LoginConfig, logger *zap.Logger) *Flow {
	return &Flow{
		navigator:  NewNavigator(site, cfg, logger),
		submitter:  NewSubmitter(cfg, logger),
		classifier: NewClassifier(site, cfg, logger),
		site:       site,
		logger:     logger.Named("login_flow"),
	}
}

// Login performs the attempt and returns exactly one outcome variant.
// Mechanical failures never escape as errors; they fold into
// UnknownFailure so the caller always gets a classified outcome.
func (f *Flow) Login(ctx context.Context, page browser.Page, creds schemas.Credentials) schemas.LoginOutcome {
	phase, err := f.navigator.Run(ctx, page)
	if err != nil {
		if errors.Is(err, ErrFormNotReached) {
			return schemas.UnknownFailure("credential form not reached")
		}
		return schemas.UnknownFailure(fmt.Sprintf("navigation failed: %v", err))
	}

	if phase == PhaseFormReady {
		if err := f.submitter.Submit(ctx, page, creds); err != nil {
			return schemas.UnknownFailure(fmt.Sprintf("credential submission failed: %v", err))
		}
		outcome := f.classifier.Classify(ctx, page)
		if outcome.Kind != schemas.OutcomeSuccess {
			return outcome
		}
	}

	// Warm the favorites page before harvesting. The API-facing cookies
	// are only set once a member page has been served, and reaching it
	// doubles as the strongest confirmation the session is real.
	if favURL := f.site.FavoritesPageURL(); favURL != "" {
		if err := page.Navigate(ctx, favURL); err != nil {
			f.logger.Warn("Could not warm the favorites page before extraction.", zap.Error(err))
		}
	}

	artifacts, err := ExtractArtifacts(ctx, page, f.site.CookieDomain)
	if err != nil {
		return schemas.UnknownFailure(fmt.Sprintf("artifact extraction failed: %v", err))
	}
	if len(artifacts.Cookies) == 0 {
		return schemas.UnknownFailure("authenticated session yielded no cookies")
	}

	f.logger.Info("Login succeeded.",
		zap.Int("cookies", len(artifacts.Cookies)),
		zap.Bool("csrf", artifacts.CSRFToken != ""),
		zap.Bool("anon_id", artifacts.AnonymousID != ""))
	return schemas.Success(artifacts)
}
