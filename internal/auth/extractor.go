// internal/auth/extractor.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/browser"
)

const csrfMetaScript = `
(function() {
    const meta = document.querySelector('meta[name="csrf-token"]');
    return meta ? (meta.getAttribute('content') || "") : "";
})()`

// initialStateAnonIDScript reads the anonymous id from the page's
// bootstrapped client state. Used only when no anon cookie exists.
const initialStateAnonIDScript = `
(function() {
    try {
        const state = window.__INITIAL_STATE__;
        if (state && state.user && state.user.anon_id) return String(state.user.anon_id);
    } catch (e) {}
    return "";
})()`

// ExtractArtifacts collects everything later request-based stages need from
// the authenticated page: the cookie jar filtered to the site's domain, the
// CSRF token and the anonymous device id. Absent optional pieces yield
// empty fields, never errors; enforcing a non-empty cookie set is the
// caller's decision.
func ExtractArtifacts(ctx context.Context, page browser.Page, cookieDomain string) (*schemas.SessionArtifacts, error) {
	all, err := page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("cookie extraction failed: %w", err)
	}

	artifacts := &schemas.SessionArtifacts{}
	for _, c := range all {
		if cookieDomain == "" || strings.Contains(c.Domain, cookieDomain) {
			artifacts.Cookies = append(artifacts.Cookies, c)
		}
	}

	var csrf string
	if err := page.Eval(ctx, csrfMetaScript, &csrf); err == nil {
		artifacts.CSRFToken = strings.TrimSpace(csrf)
	}

	artifacts.AnonymousID = anonymousID(ctx, page, artifacts.Cookies)
	return artifacts, nil
}

// anonymousID looks for the device id cookie (`anon_id` or any
// locale-prefixed `*_anon_id` variant), falling back to the page's
// bootstrapped state.
func anonymousID(ctx context.Context, page browser.Page, cookies []schemas.CookieRecord) string {
	for _, c := range cookies {
		if c.Name == "anon_id" || strings.HasSuffix(c.Name, "_anon_id") {
			return c.Value
		}
	}

	var id string
	if err := page.Eval(ctx, initialStateAnonIDScript, &id); err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}
