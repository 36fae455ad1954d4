// internal/auth/navigator_test.go
package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNavigatorRun(t *testing.T) {
	logger := zap.NewNop()

	t.Run("form visible on arrival", func(t *testing.T) {
		page := newScriptedPage()
		page.show(selIdentifier, selSecret)

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		phase, err := nav.Run(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, PhaseFormReady, phase)
		assert.Equal(t, []string{"https://www.example.test/auth/login"}, page.navigated)
		assert.Empty(t, page.clicks)
	})

	t.Run("consent dialog then form", func(t *testing.T) {
		page := newScriptedPage()
		page.show(selConsent)
		page.onClick = func(p *scriptedPage, selector string) {
			if selector == selConsent {
				p.hide(selConsent)
				p.show(selIdentifier, selSecret)
			}
		}

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		phase, err := nav.Run(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, PhaseFormReady, phase)
		assert.Equal(t, []string{selConsent}, page.clicks)
	})

	t.Run("consent then method chooser then form", func(t *testing.T) {
		page := newScriptedPage()
		page.show(selConsent)
		page.onClick = func(p *scriptedPage, selector string) {
			switch selector {
			case selConsent:
				p.hide(selConsent)
				p.show(selAdvance)
			case selAdvance:
				p.hide(selAdvance)
				p.show(selIdentifier, selSecret)
			}
		}

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		phase, err := nav.Run(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, PhaseFormReady, phase)
		assert.Equal(t, []string{selConsent, selAdvance}, page.clicks)
	})

	t.Run("existing session short-circuits", func(t *testing.T) {
		page := newScriptedPage()
		page.show(selAvatar)

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		phase, err := nav.Run(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, PhaseAlreadyAuthenticated, phase)
	})

	t.Run("member URL counts as an existing session", func(t *testing.T) {
		page := newScriptedPage()
		page.onSettle = func(p *scriptedPage) {
			// The site redirects logged-in visitors away from /auth/login.
			p.url = "https://www.example.test/member/general"
		}

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		phase, err := nav.Run(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, PhaseAlreadyAuthenticated, phase)
	})

	t.Run("step budget exhaustion fails", func(t *testing.T) {
		page := newScriptedPage()

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		_, err := nav.Run(context.Background(), page)
		require.ErrorIs(t, err, ErrFormNotReached)
	})

	t.Run("identifier without secret is not a form", func(t *testing.T) {
		page := newScriptedPage()
		page.show(selIdentifier)

		nav := NewNavigator(testSiteConfig(), testLoginConfig(), logger)
		_, err := nav.Run(context.Background(), page)
		require.ErrorIs(t, err, ErrFormNotReached)
	})
}
