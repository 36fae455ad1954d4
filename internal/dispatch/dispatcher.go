// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/config"
)

// BackendError is any non-2xx answer from the storage backend. The body is
// carried verbatim for diagnostics.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("dispatch: backend responded with status %d: %s", e.Status, e.Body)
}

// payload is the wire shape the backend ingests.
type payload struct {
	Favorites []schemas.FavoriteItem `json:"favorites"`
	Cookies   []schemas.CookieRecord `json:"cookies"`
}

// Dispatcher hands a completed retrieval run to the storage backend in a
// single POST. It never retries; the caller decides whether a failed run
// is rerun.
type Dispatcher struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(cfg config.BackendConfig, logger *zap.Logger) *Dispatcher {
	httpClient := resty.New()
	httpClient.SetTimeout(cfg.RequestTimeout)
	return &Dispatcher{
		http:   httpClient,
		logger: logger.Named("dispatcher"),
	}
}

// Dispatch posts the items and session cookies to {backendURL}/sync and
// returns the number of items sent. An empty batch is still posted; the
// backend treats it as "the user has no favorites" and may clear state.
func (d *Dispatcher) Dispatch(ctx context.Context, backendURL string, items []schemas.FavoriteItem, artifacts *schemas.SessionArtifacts) (int, error) {
	if backendURL == "" {
		return 0, fmt.Errorf("dispatch: no backend URL configured")
	}
	url := strings.TrimRight(backendURL, "/") + "/sync"

	body := payload{
		Favorites: items,
		Cookies:   []schemas.CookieRecord{},
	}
	if items == nil {
		body.Favorites = []schemas.FavoriteItem{}
	}
	if artifacts != nil && artifacts.Cookies != nil {
		body.Cookies = artifacts.Cookies
	}

	d.logger.Info("Dispatching favorites to backend.",
		zap.String("url", url), zap.Int("items", len(body.Favorites)))

	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return 0, fmt.Errorf("dispatch request failed: %w", err)
	}
	if resp.IsError() {
		return 0, &BackendError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	return len(body.Favorites), nil
}
