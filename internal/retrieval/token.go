// internal/retrieval/token.go
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mlecomte/favsync/api/schemas"
)

const (
	accessTokenCookie  = "access_token_web"
	refreshTokenCookie = "refresh_token_web"

	// expirySkew treats a token as expired this long before its actual exp,
	// so a token never dies mid-pagination.
	expirySkew = 5 * time.Minute
)

// Refresher exchanges a refresh token for a fresh access token via the
// site's oauth endpoint and splices the result back into the working
// artifact set. Concurrent callers collapse into a single upstream request.
type Refresher struct {
	http         *resty.Client
	baseURL      string
	cookieDomain string
	group        singleflight.Group
	logger       *zap.Logger
}

// NewRefresher builds a refresher sharing the retrieval client's transport.
func NewRefresher(http *resty.Client, baseURL, cookieDomain string, logger *zap.Logger) *Refresher {
	return &Refresher{
		http:         http,
		baseURL:      baseURL,
		cookieDomain: cookieDomain,
		logger:       logger.Named("token_refresher"),
	}
}

// NeedsRefresh reports whether the access-token cookie is a JWT that is
// expired or will expire within the skew window. The signature is not
// verified; only the exp claim matters and the upstream is the authority
// on validity anyway.
func (r *Refresher) NeedsRefresh(artifacts *schemas.SessionArtifacts) bool {
	token, ok := artifacts.Cookie(accessTokenCookie)
	if !ok || token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		r.logger.Debug("Access token is not a parseable JWT, skipping freshness check.", zap.Error(err))
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	if time.Until(exp.Time) < expirySkew {
		r.logger.Info("Access token expired or close to expiry.", zap.Time("exp", exp.Time))
		return true
	}
	return false
}

// Refresh performs the oauth refresh-token exchange. On success the new
// access (and, when present, refresh) token cookies replace the old ones in
// artifacts.
func (r *Refresher) Refresh(ctx context.Context, artifacts *schemas.SessionArtifacts) error {
	_, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		refreshToken, ok := artifacts.Cookie(refreshTokenCookie)
		if !ok || refreshToken == "" {
			return nil, ErrNoRefreshToken
		}

		resp, err := r.http.R().
			SetContext(ctx).
			SetHeader("Cookie", artifacts.CookieHeader()).
			SetHeader("Accept", "application/json").
			SetFormData(map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": refreshToken,
				"client_id":     "web",
			}).
			Post(r.baseURL + "/oauth/token")
		if err != nil {
			return nil, fmt.Errorf("token refresh request failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("token refresh rejected with status %d", resp.StatusCode())
		}

		var body struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("failed to decode token refresh response: %w", err)
		}
		if body.AccessToken == "" {
			return nil, errors.New("token refresh response carried no access token")
		}

		artifacts.SetCookie(accessTokenCookie, body.AccessToken, r.cookieDomain)
		if body.RefreshToken != "" {
			artifacts.SetCookie(refreshTokenCookie, body.RefreshToken, r.cookieDomain)
		}
		r.logger.Info("Access token refreshed.")
		return nil, nil
	})
	return err
}
