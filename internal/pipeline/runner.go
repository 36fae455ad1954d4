// internal/pipeline/runner.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/browser"
	"github.com/mlecomte/favsync/internal/config"
	"github.com/mlecomte/favsync/internal/dispatch"
	"github.com/mlecomte/favsync/internal/retrieval"
)

// Session is a login-capable browser tab the runner can discard after use.
type Session interface {
	browser.Page
	Close() error
}

// SessionFactory opens a fresh, isolated Session. One is created per run
// and discarded unconditionally, so no state leaks between runs.
type SessionFactory func(ctx context.Context) (Session, error)

// LoginFlow performs the full login attempt against a session.
type LoginFlow interface {
	Login(ctx context.Context, page browser.Page, creds schemas.Credentials) schemas.LoginOutcome
}

// Retriever walks the paginated favorites API.
type Retriever interface {
	FetchAll(ctx context.Context, artifacts *schemas.SessionArtifacts, userID string) (retrieval.Result, error)
}

// Dispatcher hands a completed run to the storage backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, backendURL string, items []schemas.FavoriteItem, artifacts *schemas.SessionArtifacts) (int, error)
}

// Runner executes one end-to-end sync: login, retrieve, dispatch. Stages
// run strictly in sequence and each failure short-circuits into a typed
// report; the runner never returns an error, only a report.
type Runner struct {
	sessions   SessionFactory
	flow       LoginFlow
	retriever  Retriever
	dispatcher Dispatcher
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRunner wires a runner from its stage implementations.
func NewRunner(sessions SessionFactory, flow LoginFlow, retriever Retriever, dispatcher Dispatcher, cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		sessions:   sessions,
		flow:       flow,
		retriever:  retriever,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.Named("pipeline"),
	}
}

// Run performs one sync for the given credentials.
func (r *Runner) Run(ctx context.Context, creds schemas.Credentials, backendURL string) schemas.SyncReport {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("Starting sync run.")

	session, err := r.sessions(ctx)
	if err != nil {
		logger.Error("Could not open a browser session.", zap.Error(err))
		return failure(schemas.KindUnknown, fmt.Sprintf("browser session failed: %v", err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("Session close failed.", zap.Error(cerr))
		}
	}()

	outcome := r.flow.Login(ctx, session, creds)
	if outcome.Kind != schemas.OutcomeSuccess {
		r.captureFailureState(ctx, session, runID, logger)
		return r.loginFailure(outcome, logger)
	}

	result, err := r.retriever.FetchAll(ctx, outcome.Artifacts, r.cfg.Site.UserID)
	if err != nil {
		return r.retrievalFailure(err, logger)
	}

	count, err := r.dispatcher.Dispatch(ctx, backendURL, result.Items, outcome.Artifacts)
	if err != nil {
		var backendErr *dispatch.BackendError
		if errors.As(err, &backendErr) {
			logger.Error("Backend rejected the sync.", zap.Int("status", backendErr.Status))
			return failure(schemas.KindBackendError, backendErr.Error())
		}
		logger.Error("Dispatch failed.", zap.Error(err))
		return failure(schemas.KindBackendError, err.Error())
	}

	logger.Info("Sync run complete.", zap.Int("count", count), zap.Bool("capped", result.Capped))
	return schemas.SyncReport{Success: true, Count: count, Capped: result.Capped}
}

func (r *Runner) loginFailure(outcome schemas.LoginOutcome, logger *zap.Logger) schemas.SyncReport {
	switch outcome.Kind {
	case schemas.OutcomeInvalidCredentials:
		logger.Warn("Login rejected: invalid credentials.")
		msg := "the site rejected the credentials"
		if outcome.Diagnostic != "" {
			msg = outcome.Diagnostic
		}
		return failure(schemas.KindInvalidCredentials, msg)
	case schemas.OutcomeChallengeRequired:
		logger.Warn("Login blocked by a challenge.", zap.String("challenge", string(outcome.Challenge)))
		return failure(schemas.KindChallengeRequired,
			fmt.Sprintf("the site interposed a %s challenge", outcome.Challenge))
	default:
		logger.Error("Login failed without a recognizable outcome.",
			zap.String("diagnostic", outcome.Diagnostic))
		msg := outcome.Diagnostic
		if msg == "" {
			msg = "login failed for an unknown reason"
		}
		return failure(schemas.KindUnknown, msg)
	}
}

func (r *Runner) retrievalFailure(err error, logger *zap.Logger) schemas.SyncReport {
	switch {
	case errors.Is(err, retrieval.ErrAuthExpired):
		logger.Warn("Session expired during retrieval; nothing was committed.")
		return failure(schemas.KindAuthExpired, "the session expired before retrieval completed")
	default:
		var upstream *retrieval.UpstreamError
		if errors.As(err, &upstream) {
			logger.Error("Upstream API failure.", zap.Int("status", upstream.Status))
			return failure(schemas.KindUpstreamError, upstream.Error())
		}
		logger.Error("Retrieval failed.", zap.Error(err))
		return failure(schemas.KindUnknown, err.Error())
	}
}

// captureFailureState saves a screenshot of the failed login page when a
// screenshot directory is configured. Diagnostic only; failures here are
// logged and swallowed.
func (r *Runner) captureFailureState(ctx context.Context, session Session, runID string, logger *zap.Logger) {
	dir := r.cfg.Browser.ScreenshotDir
	if dir == "" {
		return
	}
	name := fmt.Sprintf("login-failure-%s-%s.png", time.Now().UTC().Format("20060102T150405"), runID)
	path := filepath.Join(dir, name)
	if err := session.Screenshot(ctx, path); err != nil {
		logger.Warn("Could not capture failure screenshot.", zap.Error(err))
		return
	}
	logger.Info("Failure screenshot saved.", zap.String("path", path))
}

func failure(kind schemas.FailureKind, msg string) schemas.SyncReport {
	return schemas.SyncReport{Success: false, Kind: kind, Error: msg}
}
