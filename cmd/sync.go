package cmd

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mlecomte/favsync/api/schemas"
	"github.com/mlecomte/favsync/internal/auth"
	"github.com/mlecomte/favsync/internal/browser"
	"github.com/mlecomte/favsync/internal/config"
	"github.com/mlecomte/favsync/internal/dispatch"
	"github.com/mlecomte/favsync/internal/observability"
	"github.com/mlecomte/favsync/internal/pipeline"
	"github.com/mlecomte/favsync/internal/retrieval"
)

const shutdownTimeout = 30 * time.Second

// newSyncCmd creates and configures the `sync` command.
func newSyncCmd() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Logs in, collects the account's favorites and pushes them to the backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so the command line overrides
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("backend.url", cmd.Flags().Lookup("backend-url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("site.user_id", cmd.Flags().Lookup("user-id")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.screenshot_dir", cmd.Flags().Lookup("screenshot-dir")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// The context passed from main is signal-aware.
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			// FAVSYNC_IDENTIFIER and FAVSYNC_SECRET also satisfy these via
			// AutomaticEnv, so secrets can stay out of the shell history.
			creds := schemas.Credentials{
				Identifier: viper.GetString("identifier"),
				Secret:     viper.GetString("secret"),
			}
			if creds.Identifier == "" || creds.Secret == "" {
				return fmt.Errorf("both --identifier and --secret are required (or FAVSYNC_IDENTIFIER / FAVSYNC_SECRET)")
			}
			if cfg.Backend.URL == "" {
				return fmt.Errorf("a backend URL is required (--backend-url, backend.url or FAVSYNC_BACKEND_URL)")
			}

			manager := browser.NewManager(cfg, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Browser shutdown did not complete cleanly", zap.Error(err))
				}
			}()

			runner := pipeline.NewRunner(
				func(ctx context.Context) (pipeline.Session, error) { return manager.NewSession(ctx) },
				auth.NewFlow(cfg.Site, cfg.Login, logger),
				retrieval.NewClient(cfg.Site, cfg.Retrieval, logger),
				dispatch.NewDispatcher(cfg.Backend, logger),
				cfg,
				logger,
			)

			report := runner.Run(ctx, creds, cfg.Backend.URL)

			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render the sync report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !report.Success {
				return fmt.Errorf("sync failed (%s): %s", report.Kind, report.Error)
			}
			return nil
		},
	}

	syncCmd.Flags().String("identifier", "", "account email or username")
	syncCmd.Flags().String("secret", "", "account password")
	syncCmd.Flags().String("backend-url", "", "backend base URL receiving the sync payload")
	syncCmd.Flags().String("user-id", "", "numeric site user id (skips the profile lookup)")
	syncCmd.Flags().Bool("headless", true, "run the browser headless")
	syncCmd.Flags().String("screenshot-dir", "", "directory for login-failure screenshots")

	return syncCmd
}
