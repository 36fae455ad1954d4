// internal/retrieval/client.go
package retrieval

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/config"
)

// Result is a completed retrieval run.
type Result struct {
	Items []schemas.FavoriteItem
	// Capped is set when the run stopped at the page ceiling rather than at
	// the natural end of the list.
	Capped bool
}

// Client walks the paginated favorites API with the session artifacts the
// login flow produced. Pages are fetched strictly in order; a failure on
// any page aborts the whole run with nothing kept.
type Client struct {
	http          *resty.Client
	site          config.SiteConfig
	cfg           config.RetrievalConfig
	limiter       *rate.Limiter
	enrichLimiter *rate.Limiter
	enrichBackoff time.Duration
	refresher     *Refresher
	logger        *zap.Logger
}

// NewClient builds a retrieval client for the configured site.
func NewClient(site config.SiteConfig, cfg config.RetrievalConfig, logger *zap.Logger) *Client {
	httpClient := resty.New()
	httpClient.SetTimeout(cfg.RequestTimeout)
	if site.UserAgent != "" {
		httpClient.SetHeader("User-Agent", site.UserAgent)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.InterPageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.InterPageDelay), 1)
	}
	enrichLimiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.EnrichDelay > 0 {
		enrichLimiter = rate.NewLimiter(rate.Every(cfg.EnrichDelay), 1)
	}

	log := logger.Named("retrieval")
	return &Client{
		http:          httpClient,
		site:          site,
		cfg:           cfg,
		limiter:       limiter,
		enrichLimiter: enrichLimiter,
		enrichBackoff: 5 * time.Second,
		refresher:     NewRefresher(httpClient, strings.TrimRight(site.BaseURL, "/"), site.CookieDomain, log),
		logger:        log,
	}
}

// FetchAll retrieves every favorites page for the user. It terminates on
// the first empty page, stops hard at the configured page ceiling (flagged
// as capped), and deduplicates by external id with first occurrence
// winning.
func (c *Client) FetchAll(ctx context.Context, artifacts *schemas.SessionArtifacts, userID string) (Result, error) {
	if artifacts == nil || len(artifacts.Cookies) == 0 {
		return Result{}, ErrAuthExpired
	}
	if userID == "" {
		userID = c.site.UserID
	}
	if userID == "" {
		return Result{}, errors.New("retrieval: no user id configured")
	}

	if c.cfg.RefreshTokens && c.refresher.NeedsRefresh(artifacts) {
		if err := c.refresher.Refresh(ctx, artifacts); err != nil {
			// Not fatal yet; the first page decides whether the session
			// is actually dead.
			c.logger.Warn("Pre-flight token refresh failed.", zap.Error(err))
		}
	}

	seen := make(map[string]struct{})
	var items []schemas.FavoriteItem
	refreshedOn401 := false

	for page := 1; page <= c.cfg.MaxPages; page++ {
		// The limiter starts full, so page 1 is never delayed.
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}

		records, err := c.fetchPage(ctx, artifacts, userID, page)
		if errors.Is(err, ErrAuthExpired) && c.cfg.RefreshTokens && !refreshedOn401 {
			refreshedOn401 = true
			c.logger.Warn("Session rejected mid-run, attempting one token refresh.",
				zap.Int("page", page))
			if rerr := c.refresher.Refresh(ctx, artifacts); rerr != nil {
				c.logger.Warn("Mid-run token refresh failed.", zap.Error(rerr))
				return Result{}, ErrAuthExpired
			}
			records, err = c.fetchPage(ctx, artifacts, userID, page)
		}
		if err != nil {
			return Result{}, err
		}

		if len(records) == 0 {
			c.logger.Info("Reached the end of the favorites list.",
				zap.Int("pages", page-1), zap.Int("items", len(items)))
			if c.cfg.EnrichItems {
				c.enrichItems(ctx, artifacts, items)
			}
			return Result{Items: items}, nil
		}

		for _, rec := range records {
			item, ok := Normalize(rec)
			if !ok {
				c.logger.Warn("Skipping favorite record without a usable id.",
					zap.Int("page", page))
				continue
			}
			if _, dup := seen[item.ExternalID]; dup {
				c.logger.Debug("Dropping duplicate favorite.",
					zap.String("external_id", item.ExternalID), zap.Int("page", page))
				continue
			}
			seen[item.ExternalID] = struct{}{}
			items = append(items, item)
		}
	}

	c.logger.Warn("Stopped at the page ceiling; the favorites list may be truncated.",
		zap.Int("max_pages", c.cfg.MaxPages), zap.Int("items", len(items)))
	if c.cfg.EnrichItems {
		c.enrichItems(ctx, artifacts, items)
	}
	return Result{Items: items, Capped: true}, nil
}

// pageEnvelope tolerates the three list keys seen across API revisions.
type pageEnvelope struct {
	Items          []stdjson.RawMessage `json:"items"`
	FavouriteItems []stdjson.RawMessage `json:"favourite_items"`
	ItemFavourites []stdjson.RawMessage `json:"item_favourites"`
}

func (e pageEnvelope) records() []stdjson.RawMessage {
	switch {
	case len(e.Items) > 0:
		return e.Items
	case len(e.FavouriteItems) > 0:
		return e.FavouriteItems
	default:
		return e.ItemFavourites
	}
}

// acceptLanguage builds a browser-shaped Accept-Language value from the
// configured locale.
func acceptLanguage(locale string) string {
	if locale == "" {
		return "en-US,en;q=0.9"
	}
	lang, _, _ := strings.Cut(locale, "-")
	return fmt.Sprintf("%s,%s;q=0.9,en-US;q=0.8,en;q=0.7", locale, lang)
}

func (c *Client) fetchPage(ctx context.Context, artifacts *schemas.SessionArtifacts, userID string, page int) ([]stdjson.RawMessage, error) {
	base := strings.TrimRight(c.site.BaseURL, "/")
	url := base + fmt.Sprintf(c.site.FavoritesPathTemplate, userID)

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("per_page", strconv.Itoa(c.cfg.PerPage)).
		SetHeader("Cookie", artifacts.CookieHeader()).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Accept-Language", acceptLanguage(c.site.Locale)).
		SetHeader("Referer", base+"/").
		SetHeader("Origin", base)
	if artifacts.CSRFToken != "" {
		req.SetHeader("X-Csrf-Token", artifacts.CSRFToken)
	}
	if artifacts.AnonymousID != "" {
		req.SetHeader("X-Anon-Id", artifacts.AnonymousID)
	}

	c.logger.Debug("Fetching favorites page.", zap.Int("page", page), zap.String("url", url))
	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("favorites request for page %d failed: %w", page, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, ErrAuthExpired
	case resp.IsError():
		return nil, &UpstreamError{Status: resp.StatusCode()}
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode favorites page %d: %w", page, err)
	}
	return envelope.records(), nil
}
