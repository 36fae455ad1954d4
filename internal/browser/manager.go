// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the shared Chrome allocator and hands out isolated tab
// sessions. Allocation is deferred until the first session is requested so
// that commands which never touch the browser don't launch one.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup

	initOnce sync.Once
}

// NewManager creates a browser manager. The browser process itself is not
// started until NewSession is called.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser_manager"),
		sessions: make(map[string]*Session),
	}
}

// initialize builds the exec allocator that all sessions share. Allocator
// construction cannot fail; launch errors surface from the first chromedp.Run
// in NewSession.
func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser allocator.",
			zap.Bool("headless", m.cfg.Browser.Headless))

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", m.cfg.Browser.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(m.cfg.Browser.WindowWidth, m.cfg.Browser.WindowHeight),
		)
		if ua := m.cfg.Site.UserAgent; ua != "" {
			opts = append(opts, chromedp.UserAgent(ua))
		}
		if lang := m.cfg.Site.Locale; lang != "" {
			opts = append(opts, chromedp.Flag("lang", lang))
		}
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
}

// NewSession creates a fresh, isolated browser tab. Every login run gets its
// own session so no cookies or storage leak between runs.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Sugar().Debugf(format, args...)
		}),
	)

	// Running an empty task forces the browser process and target to start
	// now, so launch failures surface here rather than on first navigation.
	startCtx, cancel := context.WithTimeout(tabCtx, m.cfg.Browser.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	session := newSession(tabCtx, tabCancel, m.cfg.Browser, m.logger)

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, session.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New browser session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes all open sessions and tears down the allocator.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Info("Manager never launched a browser, nothing to shut down.")
		return nil
	}

	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	for _, s := range sessionsToClose {
		go func(s *Session) {
			if err := s.Close(); err != nil {
				m.logger.Warn("Error closing session during shutdown.",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close, forcing allocator shutdown.",
			zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period elapsed waiting for sessions, forcing allocator shutdown.")
	}

	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
