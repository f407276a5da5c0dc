package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/backendex/backendex/pkg/config"
	"github.com/backendex/backendex/pkg/controller"
	"github.com/backendex/backendex/pkg/export"
	"github.com/backendex/backendex/pkg/policy"
	"github.com/backendex/backendex/pkg/sink"
	"github.com/backendex/backendex/pkg/telemetry"
	"github.com/backendex/backendex/pkg/transports/sftp"
)

func newExportCommand(version string) *cobra.Command {
	var (
		outputPath      string
		skipThreadTasks bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run one backend inventory export",
		Long: `Authenticate against the controller, walk the metric tree of every
application matching the configured pattern, and write one row per unique
backend to the output artifact.`,
		Example: `  # Export with the default config file
  backendex export

  # Export to a different file, skipping thread tasks
  backendex export --output /tmp/backends.csv --skip-thread-tasks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if outputPath != "" {
				cfg.Output.Path = outputPath
			}
			if cmd.Flags().Changed("skip-thread-tasks") {
				cfg.Export.SkipThreadTasks = skipThreadTasks
			}

			logger, metrics, tracer, err := setupTelemetry(cfg, version)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracer.Shutdown(shutdownCtx)
			}()

			summary, err := runExport(cmd.Context(), cfg, logger, metrics, tracer)
			if err != nil {
				return err
			}

			fmt.Printf("Exported %d backends from %d applications (%d tiers) to %s\n",
				summary.Backends, summary.Applications, summary.Tiers, cfg.Output.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "override the configured output path")
	cmd.Flags().BoolVar(&skipThreadTasks, "skip-thread-tasks", false, "do not search thread tasks for nested external calls")

	return cmd
}

// setupTelemetry builds the configured logger, metrics, and tracer.
func setupTelemetry(cfg *config.Config, version string) (zerolog.Logger, *telemetry.Metrics, *telemetry.Tracer, error) {
	logging := cfg.Telemetry.Logging
	if verbose {
		logging.Level = "debug"
	}

	logger, err := telemetry.NewLogger(logging)
	if err != nil {
		return zerolog.Nop(), nil, nil, export.NewConfigError("initializing logger failed", err)
	}

	metrics := telemetry.NewMetrics(cfg.Telemetry.Metrics)

	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing, "backendex", version)
	if err != nil {
		return zerolog.Nop(), nil, nil, export.NewConfigError("initializing tracer failed", err)
	}

	return logger, metrics, tracer, nil
}

// runExport performs one full export run: authenticate, walk, flush, and
// optionally deliver the artifact.
func runExport(ctx context.Context, cfg *config.Config, logger zerolog.Logger,
	metrics *telemetry.Metrics, tracer *telemetry.Tracer) (*export.Summary, error) {

	client, err := controller.NewClient(ctx, controller.Config{
		BaseURL:  cfg.Controller.BaseURL,
		Account:  cfg.Controller.Account,
		Username: cfg.Controller.Username,
		Password: cfg.Controller.Password,
		Secret:   cfg.Controller.Secret,
		ProxyURL: cfg.Controller.ProxyURL,
		Timeout:  time.Duration(cfg.Controller.Timeout),
	}, logger, metrics)
	if err != nil {
		return nil, err
	}

	out, err := buildSink(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Closing output sink failed")
		}
	}()

	engine, err := policy.NewEngine(logger)
	if err != nil {
		return nil, export.NewConfigError("initializing policy engine failed", err)
	}
	if err := engine.LoadPaths(ctx, cfg.Policies); err != nil {
		return nil, err
	}

	walker, err := export.NewWalker(client, out, engine, export.WalkerOptions{
		ApplicationNames: cfg.Export.ApplicationNames,
		BackendTypes:     cfg.Export.BackendTypes,
		SkipThreadTasks:  cfg.Export.SkipThreadTasks,
	}, logger, metrics, tracer)
	if err != nil {
		return nil, err
	}

	summary, err := walker.Run(ctx)
	if err != nil {
		return summary, err
	}

	// Delivery failures are logged, not fatal: the artifact is complete on
	// local disk at this point.
	if cfg.Delivery.SFTP != nil {
		uploader := sftp.NewUploader(sftp.Config{
			Host:           cfg.Delivery.SFTP.Host,
			Port:           cfg.Delivery.SFTP.Port,
			User:           cfg.Delivery.SFTP.Username,
			Password:       cfg.Delivery.SFTP.Password,
			PrivateKeyPath: cfg.Delivery.SFTP.PrivateKeyPath,
			KnownHostsPath: cfg.Delivery.SFTP.KnownHostsPath,
			RemotePath:     cfg.Delivery.SFTP.RemotePath,
		}, logger)
		if err := uploader.Upload(ctx, cfg.Output.Path); err != nil {
			logger.Error().Err(err).Msg("Artifact delivery failed, output kept on local disk")
		}
	}

	return summary, nil
}

func buildSink(cfg *config.Config, logger zerolog.Logger) (export.Sink, error) {
	switch cfg.Output.Format {
	case "sqlite":
		return sink.NewSQLiteSink(cfg.Output.Path, logger)
	default:
		return sink.NewCSVSink(cfg.Output.Path, cfg.Output.Quote, logger), nil
	}
}
