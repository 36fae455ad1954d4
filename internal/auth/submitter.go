// internal/auth/submitter.go
package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/browser"
	"github.com/mlecomte/favsync/internal/config"
)

// fieldSettle is the pause between filling the two credential fields, long
// enough for client-side validation to release the secret field.
const fieldSettle = 500 * time.Millisecond

// Submitter enters credentials into a resolved login form and submits it.
// The identifier is always entered before the secret; some form
// implementations disable the secret field until the identifier validates.
type Submitter struct {
	cfg    config.LoginConfig
	logger *zap.Logger
}

// NewSubmitter builds a submitter.
func NewSubmitter(cfg config.LoginConfig, logger *zap.Logger) *Submitter {
	return &Submitter{cfg: cfg, logger: logger.Named("submitter")}
}

// Submit fills both credential fields and triggers form submission, then
// waits for the post-submit settle period. It does not classify the result.
func (s *Submitter) Submit(ctx context.Context, page browser.Page, creds schemas.Credentials) error {
	if err := s.fillField(ctx, page, identifierLocators, creds.Identifier, "identifier"); err != nil {
		return err
	}
	if err := page.Settle(ctx, fieldSettle); err != nil {
		return err
	}
	if err := s.fillField(ctx, page, secretLocators, creds.Secret, "secret"); err != nil {
		return err
	}

	spec, found, err := browser.ResolveLocator(ctx, page, s.logger, submitLocators)
	if err != nil {
		return err
	}
	if found {
		s.logger.Debug("Clicking submit button.", zap.String("selector", spec.Selector))
		if err := page.Click(ctx, spec.Selector); err != nil {
			return fmt.Errorf("submit click failed: %w", err)
		}
	} else {
		// No recognizable submit control; Enter from the secret field
		// submits the form on every deployment seen so far.
		s.logger.Debug("No submit button resolved, pressing Enter.")
		if err := page.PressKey(ctx, "Enter"); err != nil {
			return fmt.Errorf("submit via Enter failed: %w", err)
		}
	}

	return page.Settle(ctx, s.cfg.SubmitSettle)
}

// fillField resolves the field through its cascade and fills it. When the
// cascade is exhausted it degrades to keyboard-only entry: Tab to the next
// focusable element and type blind.
func (s *Submitter) fillField(ctx context.Context, page browser.Page, cascade []browser.LocatorSpec, value, name string) error {
	spec, found, err := browser.ResolveLocator(ctx, page, s.logger, cascade)
	if err != nil {
		return err
	}
	if found {
		if err := page.Fill(ctx, spec.Selector, value); err != nil {
			return fmt.Errorf("failed to fill %s field: %w", name, err)
		}
		return nil
	}

	s.logger.Warn("Field cascade exhausted, falling back to keyboard entry.",
		zap.String("field", name))
	if err := page.PressKey(ctx, "Tab"); err != nil {
		return fmt.Errorf("keyboard fallback for %s field failed: %w", name, err)
	}
	if err := page.Settle(ctx, fieldSettle); err != nil {
		return err
	}
	if err := page.TypeActive(ctx, value); err != nil {
		return fmt.Errorf("keyboard fallback for %s field failed: %w", name, err)
	}
	return nil
}
