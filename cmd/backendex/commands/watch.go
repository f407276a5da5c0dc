package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/backendex/backendex/pkg/config"
	"github.com/backendex/backendex/pkg/telemetry"
)

func newWatchCommand(version string) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the export whenever the config file changes",
		Long: `Run an export immediately, then keep watching the config file and re-run
on every change. The Prometheus endpoint stays up for scraping while the
process is alive. Intended for keeping an inventory file continuously in sync
with a reviewed configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), version, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "debounce", 2*time.Second, "quiet period after a config change before re-running")

	return cmd
}

func runWatch(ctx context.Context, version string, debounce time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, metrics, tracer, err := setupTelemetry(cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.StopServer(shutdownCtx)
		_ = tracer.Shutdown(shutdownCtx)
	}()

	if err := metrics.StartServer(); err != nil {
		return err
	}

	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode goes stale.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		return err
	}

	runOnce(ctx, cfg, logger, metrics, tracer)

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Info().Str("event", event.Op.String()).Msg("Config changed, scheduling re-run")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")

		case <-pending:
			reloaded, err := config.Load(configPath)
			if err != nil {
				logger.Error().Err(err).Msg("Reloaded config invalid, keeping previous export")
				continue
			}
			cfg = reloaded
			runOnce(ctx, cfg, logger, metrics, tracer)
		}
	}
}

func runOnce(ctx context.Context, cfg *config.Config, logger zerolog.Logger,
	metrics *telemetry.Metrics, tracer *telemetry.Tracer) {
	summary, err := runExport(ctx, cfg, logger, metrics, tracer)
	if err != nil {
		logger.Error().Err(err).Msg("Export run failed")
		return
	}
	logger.Info().Int("backends", summary.Backends).Str("output", cfg.Output.Path).Msg("Export refreshed")
}
