// internal/retrieval/errors.go
package retrieval

import (
	"errors"
	"fmt"
)

// ErrAuthExpired reports that the upstream rejected the session mid-run.
// Nothing fetched before the rejection is kept; the whole run aborts.
var ErrAuthExpired = errors.New("retrieval: session authentication expired")

// ErrNoRefreshToken reports that a token refresh was needed but the cookie
// jar carries no refresh token to do it with.
var ErrNoRefreshToken = errors.New("retrieval: no refresh token available")

// UpstreamError is any non-401, non-2xx response from the favorites API.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("retrieval: upstream responded with status %d", e.Status)
}
