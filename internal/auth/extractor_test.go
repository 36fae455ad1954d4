// internal/auth/extractor_test.go
package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlecomte/favsync/api/schemas"
)

func TestExtractArtifacts(t *testing.T) {

	t.Run("filters cookies by domain substring", func(t *testing.T) {
		page := newScriptedPage()
		page.cookies = []schemas.CookieRecord{
			{Name: "_session", Value: "abc", Domain: ".example.test"},
			{Name: "access_token_web", Value: "tok", Domain: "www.example.test"},
			{Name: "tracker", Value: "x", Domain: ".ads.thirdparty.net"},
		}

		artifacts, err := ExtractArtifacts(context.Background(), page, "example")
		require.NoError(t, err)
		require.Len(t, artifacts.Cookies, 2)
		assert.Equal(t, "_session", artifacts.Cookies[0].Name)
		assert.Equal(t, "access_token_web", artifacts.Cookies[1].Name)
	})

	t.Run("empty domain keeps everything", func(t *testing.T) {
		page := newScriptedPage()
		page.cookies = []schemas.CookieRecord{
			{Name: "a", Domain: "x"},
			{Name: "b", Domain: "y"},
		}

		artifacts, err := ExtractArtifacts(context.Background(), page, "")
		require.NoError(t, err)
		assert.Len(t, artifacts.Cookies, 2)
	})

	t.Run("reads the csrf meta tag", func(t *testing.T) {
		page := newScriptedPage()
		page.csrf = "  csrf-12345  "

		artifacts, err := ExtractArtifacts(context.Background(), page, "")
		require.NoError(t, err)
		assert.Equal(t, "csrf-12345", artifacts.CSRFToken)
	})

	t.Run("anonymous id from the bare cookie", func(t *testing.T) {
		page := newScriptedPage()
		page.cookies = []schemas.CookieRecord{
			{Name: "anon_id", Value: "anon-1", Domain: "example.test"},
		}

		artifacts, err := ExtractArtifacts(context.Background(), page, "example")
		require.NoError(t, err)
		assert.Equal(t, "anon-1", artifacts.AnonymousID)
	})

	t.Run("anonymous id from a locale-prefixed cookie", func(t *testing.T) {
		page := newScriptedPage()
		page.cookies = []schemas.CookieRecord{
			{Name: "_site_fr_anon_id", Value: "anon-2", Domain: "example.test"},
		}

		artifacts, err := ExtractArtifacts(context.Background(), page, "example")
		require.NoError(t, err)
		assert.Equal(t, "anon-2", artifacts.AnonymousID)
	})

	t.Run("anonymous id falls back to the page state", func(t *testing.T) {
		page := newScriptedPage()
		page.anonID = "state-anon"

		artifacts, err := ExtractArtifacts(context.Background(), page, "")
		require.NoError(t, err)
		assert.Equal(t, "state-anon", artifacts.AnonymousID)
	})

	t.Run("missing optional pieces stay empty without error", func(t *testing.T) {
		page := newScriptedPage()

		artifacts, err := ExtractArtifacts(context.Background(), page, "example")
		require.NoError(t, err)
		assert.Empty(t, artifacts.Cookies)
		assert.Empty(t, artifacts.CSRFToken)
		assert.Empty(t, artifacts.AnonymousID)
	})
}
