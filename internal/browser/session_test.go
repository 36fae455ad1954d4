// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/internal/config"
)

func newTestSession(cfg config.BrowserConfig) *Session {
	return newSession(context.Background(), func() {}, cfg, zap.NewNop())
}

func TestNavigateActions(t *testing.T) {
	t.Run("settle wait appends a post-load hold", func(t *testing.T) {
		s := newTestSession(config.BrowserConfig{SettleWait: 2 * time.Second})
		assert.Len(t, s.navigateActions("https://www.example.test/"), 3)
	})

	t.Run("zero settle wait navigates without a hold", func(t *testing.T) {
		s := newTestSession(config.BrowserConfig{})
		assert.Len(t, s.navigateActions("https://www.example.test/"), 2)
	})
}

func TestTypeActions(t *testing.T) {
	s := newTestSession(config.BrowserConfig{})
	// One key delay, one send, one hold per rune.
	assert.Len(t, s.typeActions("input", "héllo"), 15)
}
