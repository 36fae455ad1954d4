// internal/browser/locator_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
)

// fakePage is a scripted Page for locator tests. Only HasVisible matters
// here; everything else is inert.
type fakePage struct {
	visible  map[string]bool
	probeErr map[string]error
	probed   []string
}

func (f *fakePage) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakePage) URL(ctx context.Context) (string, error)        { return "", nil }
func (f *fakePage) BodyText(ctx context.Context) (string, error)   { return "", nil }
func (f *fakePage) HasVisible(ctx context.Context, selector string) (bool, error) {
	f.probed = append(f.probed, selector)
	if err, ok := f.probeErr[selector]; ok {
		return false, err
	}
	return f.visible[selector], nil
}
func (f *fakePage) Click(ctx context.Context, selector string) error       { return nil }
func (f *fakePage) Fill(ctx context.Context, selector, value string) error { return nil }
func (f *fakePage) PressKey(ctx context.Context, key string) error         { return nil }
func (f *fakePage) TypeActive(ctx context.Context, text string) error      { return nil }
func (f *fakePage) Eval(ctx context.Context, script string, out interface{}) error {
	return nil
}
func (f *fakePage) Cookies(ctx context.Context) ([]schemas.CookieRecord, error) {
	return nil, nil
}
func (f *fakePage) Screenshot(ctx context.Context, path string) error { return nil }
func (f *fakePage) Settle(ctx context.Context, d time.Duration) error { return nil }

func specs(selectors ...string) []LocatorSpec {
	out := make([]LocatorSpec, 0, len(selectors))
	for _, s := range selectors {
		out = append(out, LocatorSpec{Selector: s, Description: "candidate " + s})
	}
	return out
}

func TestResolveLocator(t *testing.T) {
	logger := zap.NewNop()

	t.Run("first visible candidate wins", func(t *testing.T) {
		page := &fakePage{visible: map[string]bool{
			"#new-login": false,
			"#old-login": true,
			"#ancient":   true,
		}}

		spec, found, err := ResolveLocator(context.Background(), page, logger,
			specs("#new-login", "#old-login", "#ancient"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "#old-login", spec.Selector)
		// Probing must stop at the first hit.
		assert.Equal(t, []string{"#new-login", "#old-login"}, page.probed)
	})

	t.Run("exhausted cascade is not an error", func(t *testing.T) {
		page := &fakePage{visible: map[string]bool{}}

		_, found, err := ResolveLocator(context.Background(), page, logger, specs("#a", "#b"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, []string{"#a", "#b"}, page.probed)
	})

	t.Run("probe errors skip to the next candidate", func(t *testing.T) {
		page := &fakePage{
			visible:  map[string]bool{"#b": true},
			probeErr: map[string]error{"#a": errors.New("evaluation blew up")},
		}

		spec, found, err := ResolveLocator(context.Background(), page, logger, specs("#a", "#b"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "#b", spec.Selector)
	})

	t.Run("context cancellation aborts the cascade", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		page := &fakePage{probeErr: map[string]error{"#a": context.Canceled}}

		_, _, err := ResolveLocator(ctx, page, logger, specs("#a", "#b"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []string{"#a"}, page.probed)
	})

	t.Run("empty cascade resolves to nothing", func(t *testing.T) {
		page := &fakePage{}
		_, found, err := ResolveLocator(context.Background(), page, logger, nil)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
