// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/config"
)

// Session is a single live browser tab backed by chromedp. It implements
// the Page interface used by the login flow.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	typist *typist

	onClose   func()
	closeOnce sync.Once
}

var _ Page = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		typist: newTypist(),
		logger: logger.Named("session").With(zap.String("session_id", id)),
	}
}

// ID returns the unique identifier of this session.
func (s *Session) ID() string { return s.id }

// run executes chromedp actions against the tab context with the configured
// navigation timeout, while still honoring the caller's cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads the URL, waits until the document body exists, then holds
// for the configured settle wait so client-rendered content has attached.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.run(ctx, s.navigateActions(url)...)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *Session) navigateActions(url string) []chromedp.Action {
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.SettleWait > 0 {
		actions = append(actions, chromedp.Sleep(s.cfg.SettleWait))
	}
	return actions
}

// URL reports the tab's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// BodyText returns the rendered text of the page body. An empty document
// yields an empty string rather than an error.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var text string
	err := s.Eval(ctx, `document.body ? document.body.innerText : ""`, &text)
	if err != nil {
		return "", fmt.Errorf("failed to read body text: %w", err)
	}
	return text, nil
}

// visibilityProbe checks that the first match has layout dimensions and is
// not hidden via display, visibility or opacity.
const visibilityProbe = `
(function(sel) {
    const node = document.querySelector(sel);
    if (!node) return false;
    const rect = node.getBoundingClientRect();
    const style = window.getComputedStyle(node);
    return rect.width > 0 && rect.height > 0 &&
        style.display !== 'none' &&
        style.visibility !== 'hidden' &&
        style.opacity !== '0';
})(%s)`

// HasVisible reports whether the selector matches a visible element.
func (s *Session) HasVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	script := fmt.Sprintf(visibilityProbe, jsonEncode(selector))
	if err := s.Eval(ctx, script, &visible); err != nil {
		return false, fmt.Errorf("visibility probe for %q failed: %w", selector, err)
	}
	return visible, nil
}

// Click clicks the first element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Fill focuses the element, clears any existing value, and types the new one
// key by key so framework change listeners fire.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	clear := fmt.Sprintf(`
(function(sel) {
    const node = document.querySelector(sel);
    if (!node) return false;
    node.focus();
    node.value = '';
    node.dispatchEvent(new Event('input', { bubbles: true }));
    return true;
})(%s)`, jsonEncode(selector))

	var focused bool
	if err := s.Eval(ctx, clear, &focused); err != nil {
		return fmt.Errorf("failed to focus %q: %w", selector, err)
	}
	if !focused {
		return fmt.Errorf("fill %q: %w", selector, ErrElementNotFound)
	}
	if err := s.run(ctx, s.typeActions(selector, value)...); err != nil {
		return fmt.Errorf("failed to type into %q: %w", selector, err)
	}
	return nil
}

// typeActions builds a per-key action sequence with the typist's cadence.
// Keys go through SendKeys one at a time so framework change listeners fire
// with timing indistinguishable from manual entry.
func (s *Session) typeActions(selector, value string) []chromedp.Action {
	runes := []rune(value)
	actions := make([]chromedp.Action, 0, len(runes)*3)
	for i, r := range runes {
		actions = append(actions,
			chromedp.Sleep(s.typist.keyDelay(runes, i)),
			chromedp.SendKeys(selector, string(r), chromedp.ByQuery),
			chromedp.Sleep(s.typist.holdDelay()),
		)
	}
	return actions
}

// PressKey dispatches a named key (e.g. "Enter", "Tab") as a down/up pair.
func (s *Session) PressKey(ctx context.Context, key string) error {
	keyDown := input.DispatchKeyEvent(input.KeyDown).WithKey(key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithKey(key)
	if err := s.run(ctx, keyDown, keyUp); err != nil {
		return fmt.Errorf("failed to press %q: %w", key, err)
	}
	return nil
}

// TypeActive types text into the currently focused element, one key at a
// time with the typist's cadence.
func (s *Session) TypeActive(ctx context.Context, text string) error {
	runes := []rune(text)
	actions := make([]chromedp.Action, 0, len(runes)*3)
	for i, r := range runes {
		actions = append(actions,
			chromedp.Sleep(s.typist.keyDelay(runes, i)),
			chromedp.KeyEvent(string(r)),
			chromedp.Sleep(s.typist.holdDelay()),
		)
	}
	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("failed to type into active element: %w", err)
	}
	return nil
}

// Eval runs a JavaScript expression, awaiting promises, and unmarshals the
// result into out. A nil out discards the result.
func (s *Session) Eval(ctx context.Context, script string, out interface{}) error {
	var res json.RawMessage
	err := s.run(ctx, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	if out == nil {
		return nil
	}
	if len(res) == 0 || string(res) == "null" || string(res) == "undefined" {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("failed to unmarshal script result: %w (payload: %s)", err, string(res))
	}
	return nil
}

// Cookies returns all cookies of the browser context.
func (s *Session) Cookies(ctx context.Context) ([]schemas.CookieRecord, error) {
	var raw []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	records := make([]schemas.CookieRecord, 0, len(raw))
	for _, c := range raw {
		rec := schemas.CookieRecord{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
		// Expires <= 0 means a session cookie with no fixed expiry.
		if c.Expires > 0 {
			sec := int64(c.Expires)
			nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
			t := time.Unix(sec, nsec).UTC()
			rec.ExpiresAt = &t
		}
		records = append(records, rec)
	}
	return records, nil
}

// Screenshot captures the viewport as PNG and writes it to path, creating
// parent directories as needed.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Debug("Screenshot written.", zap.String("path", path))
	return nil
}

// Settle waits for the given duration, bounded by the context.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	return s.run(ctx, chromedp.Sleep(d))
}

// Close tears down the tab. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
	return nil
}

// jsonEncode safely encodes a value for embedding in a JS expression.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
