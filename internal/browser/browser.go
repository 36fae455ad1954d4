// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/mlecomte/favsync/api/schemas"
)

// ErrElementNotFound is returned when a selector matches nothing usable,
// either because the node is absent or because it is not visible.
var ErrElementNotFound = errors.New("browser: element not found or not visible")

// Page is the minimal surface the login flow needs from a live browser tab.
// The concrete implementation is Session (chromedp); tests substitute
// scripted fakes.
type Page interface {
	// Navigate loads the URL and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error
	// URL reports the current location of the tab.
	URL(ctx context.Context) (string, error)
	// BodyText returns the rendered inner text of the document body.
	BodyText(ctx context.Context) (string, error)
	// HasVisible reports whether the selector matches at least one element
	// that occupies layout space and is not hidden by style.
	HasVisible(ctx context.Context, selector string) (bool, error)
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Fill focuses the matching element, clears it, and types the value.
	Fill(ctx context.Context, selector, value string) error
	// PressKey dispatches a named key (e.g. "Enter", "Tab") to the page.
	PressKey(ctx context.Context, key string) error
	// TypeActive types text into whichever element currently holds focus.
	TypeActive(ctx context.Context, text string) error
	// Eval runs a JavaScript expression and unmarshals the result into out.
	// A nil out discards the result.
	Eval(ctx context.Context, script string, out interface{}) error
	// Cookies returns the cookies visible to the current browser context.
	Cookies(ctx context.Context) ([]schemas.CookieRecord, error)
	// Screenshot captures the viewport as PNG and writes it to path.
	Screenshot(ctx context.Context, path string) error
	// Settle waits for the given duration, bounded by the context.
	Settle(ctx context.Context, d time.Duration) error
}
