// internal/browser/locator.go
package browser

import (
	"context"

	"go.uber.org/zap"
)

// LocatorSpec is one candidate CSS selector for a page element, with a
// human-readable description for logs. Markup drifts between deployments
// and locales, so a single selector is never trusted; callers hold ordered
// cascades of candidates.
type LocatorSpec struct {
	Selector    string
	Description string
}

// ResolveLocator probes the candidates in order and returns the first spec
// whose selector matches a visible element. A fully exhausted cascade is a
// normal result (found=false), not an error; only context failure aborts.
// Probe errors on individual candidates are logged and skipped.
func ResolveLocator(ctx context.Context, page Page, logger *zap.Logger, specs []LocatorSpec) (LocatorSpec, bool, error) {
	for _, spec := range specs {
		visible, err := page.HasVisible(ctx, spec.Selector)
		if err != nil {
			if ctx.Err() != nil {
				return LocatorSpec{}, false, ctx.Err()
			}
			logger.Debug("Locator candidate probe failed, trying next.",
				zap.String("description", spec.Description),
				zap.String("selector", spec.Selector),
				zap.Error(err))
			continue
		}
		if visible {
			logger.Debug("Locator resolved.",
				zap.String("description", spec.Description),
				zap.String("selector", spec.Selector))
			return spec, true, nil
		}
	}
	return LocatorSpec{}, false, nil
}
