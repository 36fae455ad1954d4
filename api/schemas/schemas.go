// api/schemas/schemas.go
package schemas

import (
	"strings"
	"time"
)

// -- Session Schemas --

// CookieRecord is a single browser cookie scoped to the target site, in the
// order the browser reported it.
type CookieRecord struct {
	Name      string     `json:"name"`
	Value     string     `json:"value"`
	Domain    string     `json:"domain"`
	Path      string     `json:"path"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SessionArtifacts is everything the retrieval pipeline needs to act as an
// authenticated user: the cookie set plus auxiliary tokens. CSRFToken and
// AnonymousID are best-effort; only an empty cookie set makes the artifacts
// unusable.
type SessionArtifacts struct {
	Cookies     []CookieRecord `json:"cookies"`
	CSRFToken   string         `json:"csrfToken,omitempty"`
	AnonymousID string         `json:"anonymousId,omitempty"`
}

// CookieHeader serializes the cookie set into a Cookie request header value.
func (a *SessionArtifacts) CookieHeader() string {
	if len(a.Cookies) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(a.Cookies))
	for _, c := range a.Cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// Cookie returns the value of the first cookie with the given name.
func (a *SessionArtifacts) Cookie(name string) (string, bool) {
	for _, c := range a.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// SetCookie replaces the value of an existing cookie or appends a new one.
func (a *SessionArtifacts) SetCookie(name, value, domain string) {
	for i := range a.Cookies {
		if a.Cookies[i].Name == name {
			a.Cookies[i].Value = value
			return
		}
	}
	a.Cookies = append(a.Cookies, CookieRecord{Name: name, Value: value, Domain: domain, Path: "/"})
}

// Credentials is the identifier/secret pair handed to the login pipeline.
// It is held in memory for the duration of one run and never persisted here.
type Credentials struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"-"`
}

// -- Login Outcome Schemas --

// OutcomeKind enumerates the terminal states of one login attempt.
type OutcomeKind string

const (
	OutcomeSuccess            OutcomeKind = "success"
	OutcomeInvalidCredentials OutcomeKind = "invalid-credentials"
	OutcomeChallengeRequired  OutcomeKind = "challenge-required"
	OutcomeUnknownFailure     OutcomeKind = "unknown-failure"
)

// ChallengeKind distinguishes the two anti-automation interludes the site can
// interpose. Both are unrecoverable without a human.
type ChallengeKind string

const (
	ChallengeCaptcha   ChallengeKind = "captcha"
	ChallengeTwoFactor ChallengeKind = "two-factor"
)

// LoginOutcome is the tagged result of a single login attempt. Exactly one
// variant applies: Success implies Artifacts is populated, every other kind
// implies it is nil.
type LoginOutcome struct {
	Kind       OutcomeKind       `json:"kind"`
	Challenge  ChallengeKind     `json:"challenge,omitempty"`
	Diagnostic string            `json:"diagnostic,omitempty"`
	Artifacts  *SessionArtifacts `json:"-"`
}

// Success builds the single positive variant.
func Success(artifacts *SessionArtifacts) LoginOutcome {
	return LoginOutcome{Kind: OutcomeSuccess, Artifacts: artifacts}
}

// InvalidCredentials builds the wrong-identifier-or-secret variant.
func InvalidCredentials() LoginOutcome {
	return LoginOutcome{Kind: OutcomeInvalidCredentials}
}

// ChallengeRequired builds the captcha/two-factor variant.
func ChallengeRequired(kind ChallengeKind) LoginOutcome {
	return LoginOutcome{Kind: OutcomeChallengeRequired, Challenge: kind}
}

// UnknownFailure builds the catch-all variant with a human-readable diagnostic.
func UnknownFailure(diagnostic string) LoginOutcome {
	return LoginOutcome{Kind: OutcomeUnknownFailure, Diagnostic: diagnostic}
}

// -- Favorite Item Schemas --

// FavoriteItem is the normalized representation of one favorited listing.
// ExternalID is the only required field; everything else degrades to its
// zero value when the upstream record omits or mangles it.
type FavoriteItem struct {
	ExternalID   string  `json:"externalId"`
	Title        string  `json:"title"`
	Brand        string  `json:"brand,omitempty"`
	SizeLabel    string  `json:"sizeLabel,omitempty"`
	Condition    string  `json:"condition,omitempty"`
	Category     string  `json:"category,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	ProductURL   string  `json:"productUrl,omitempty"`
	SellerHandle string  `json:"sellerHandle,omitempty"`
	Price        float64 `json:"price"`
	Sold         bool    `json:"sold"`
}

// -- Run Report Schemas --

// FailureKind is the user-facing error taxonomy of a sync run.
type FailureKind string

const (
	KindInvalidCredentials FailureKind = "invalid-credentials"
	KindChallengeRequired  FailureKind = "challenge-required"
	KindAuthExpired        FailureKind = "auth-expired"
	KindUpstreamError      FailureKind = "upstream-error"
	KindBackendError       FailureKind = "backend-error"
	KindUnknown            FailureKind = "unknown"
)

// SyncReport is the final result of one pipeline invocation.
type SyncReport struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Capped  bool        `json:"capped,omitempty"`
	Kind    FailureKind `json:"kind,omitempty"`
	Error   string      `json:"error,omitempty"`
}
