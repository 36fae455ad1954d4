// internal/retrieval/enrich.go
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
)

// Persistent 429s abort the pass to avoid getting the session blocked.
const enrichRateLimitRetries = 2

// itemDetailEnvelope mirrors the parts of the item detail endpoint that
// carry category information. The category lives in a different place
// depending on the API revision, so every known spot is decoded.
type itemDetailEnvelope struct {
	Item *struct {
		Catalog *struct {
			Title string `json:"title"`
		} `json:"catalog"`
		CatalogTitle string `json:"catalog_title"`
		CatalogTree  []struct {
			Title string `json:"title"`
		} `json:"catalog_tree"`
		Category              string `json:"category"`
		ServiceFeeCatalogName string `json:"service_fee_catalog_title"`
		CatalogBranchTitle    string `json:"catalog_branch_title"`
	} `json:"item"`
}

// category resolves the first populated category source, preferring the
// explicit catalog over inferred ones. The catalog tree's last entry is the
// most specific.
func (e itemDetailEnvelope) category() string {
	if e.Item == nil {
		return ""
	}
	it := e.Item
	if it.Catalog != nil && it.Catalog.Title != "" {
		return it.Catalog.Title
	}
	if it.CatalogTitle != "" {
		return it.CatalogTitle
	}
	if n := len(it.CatalogTree); n > 0 && it.CatalogTree[n-1].Title != "" {
		return it.CatalogTree[n-1].Title
	}
	if it.Category != "" {
		return it.Category
	}
	if it.ServiceFeeCatalogName != "" {
		return it.ServiceFeeCatalogName
	}
	return it.CatalogBranchTitle
}

// enrichItems fills in the category of each item from the per-item detail
// endpoint, up to the configured batch cap. The pass is best effort: a
// deleted item (404) or a malformed detail is skipped, and only persistent
// rate limiting stops the walk early. The favorites themselves are already
// final; enrichment failures never fail the run.
func (c *Client) enrichItems(ctx context.Context, artifacts *schemas.SessionArtifacts, items []schemas.FavoriteItem) {
	batch := len(items)
	if batch > c.cfg.MaxEnrichBatch {
		batch = c.cfg.MaxEnrichBatch
		c.logger.Warn("Capping enrichment batch to stay under the detail endpoint's rate limit.",
			zap.Int("batch", batch), zap.Int("items", len(items)))
	}

	enriched := 0
	refreshed := false
	for i := 0; i < batch; i++ {
		if err := c.enrichLimiter.Wait(ctx); err != nil {
			return
		}

		category, err := c.fetchItemDetail(ctx, artifacts, items[i].ExternalID)
		if errors.Is(err, ErrAuthExpired) && c.cfg.RefreshTokens && !refreshed {
			refreshed = true
			if rerr := c.refresher.Refresh(ctx, artifacts); rerr == nil {
				category, err = c.fetchItemDetail(ctx, artifacts, items[i].ExternalID)
			}
		}
		if err != nil {
			var upstream *UpstreamError
			if errors.As(err, &upstream) && upstream.Status == http.StatusTooManyRequests {
				c.logger.Error("Detail endpoint keeps rate limiting; stopping enrichment.",
					zap.Int("enriched", enriched))
				return
			}
			c.logger.Warn("Skipping item enrichment.",
				zap.String("external_id", items[i].ExternalID), zap.Error(err))
			continue
		}
		if category == "" {
			continue
		}
		items[i].Category = category
		enriched++
	}

	c.logger.Info("Enrichment pass complete.",
		zap.Int("enriched", enriched), zap.Int("batch", batch))
	if len(items) > batch {
		c.logger.Info("Favorites beyond the batch cap were left unenriched.",
			zap.Int("remaining", len(items)-batch))
	}
}

// fetchItemDetail returns the category for one item. A missing item (404)
// yields an empty category and no error; 429 is retried with exponential
// backoff before surfacing.
func (c *Client) fetchItemDetail(ctx context.Context, artifacts *schemas.SessionArtifacts, externalID string) (string, error) {
	backoff := c.enrichBackoff
	for attempt := 0; ; attempt++ {
		category, err := c.itemDetailRequest(ctx, artifacts, externalID)
		var upstream *UpstreamError
		if err == nil || !errors.As(err, &upstream) || upstream.Status != http.StatusTooManyRequests {
			return category, err
		}
		if attempt >= enrichRateLimitRetries {
			return "", err
		}
		c.logger.Warn("Detail endpoint rate limited, backing off.",
			zap.String("external_id", externalID), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *Client) itemDetailRequest(ctx context.Context, artifacts *schemas.SessionArtifacts, externalID string) (string, error) {
	base := strings.TrimRight(c.site.BaseURL, "/")
	url := base + "/api/v2/items/" + externalID

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", artifacts.CookieHeader()).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Accept-Language", acceptLanguage(c.site.Locale)).
		SetHeader("Referer", base+"/items/"+externalID).
		SetHeader("Origin", base)
	if artifacts.CSRFToken != "" {
		req.SetHeader("X-Csrf-Token", artifacts.CSRFToken)
	}
	if artifacts.AnonymousID != "" {
		req.SetHeader("X-Anon-Id", artifacts.AnonymousID)
	}

	resp, err := req.Get(url)
	if err != nil {
		return "", fmt.Errorf("item detail request for %s failed: %w", externalID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		// Deleted or sold in the meantime; nothing to enrich.
		return "", nil
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return "", ErrAuthExpired
	case resp.IsError():
		return "", &UpstreamError{Status: resp.StatusCode()}
	}

	var envelope itemDetailEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return "", fmt.Errorf("failed to decode item detail for %s: %w", externalID, err)
	}
	return envelope.category(), nil
}
