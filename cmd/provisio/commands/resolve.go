package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provisio/provisio/pkg/provision"
	"github.com/provisio/provisio/pkg/stores"
	"github.com/provisio/provisio/pkg/telemetry"
)

func newResolveCommand() *cobra.Command {
	var (
		flags resolveFlags
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve features into provisioning directives",
		Long: `Resolve the requested features from a feature repository descriptor.

The resolution:
  - Fetches and parses the root descriptor
  - Walks nested repository references depth-first, breaking cycles
  - Selects the requested features
  - Emits ordered bundle, configuration, and file directives`,
		Example: `  # Resolve two features from a remote repository
  provisio resolve --repository https://repo.example.com/features.xml \
    --feature core --feature http

  # Resolve from a manifest, recording the run
  provisio -c provisio.yaml resolve

  # Deploy config files while resolving
  provisio resolve -r file:./features.xml -f core --work-dir ./deploy

  # Print the result as JSON
  provisio --json resolve -r file:./features.xml -f core`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(flags)
			if err != nil {
				return err
			}

			log, err := newLogger(m)
			if err != nil {
				return err
			}

			tcfg := m.TelemetryConfig()
			metrics, err := telemetry.NewMetrics(tcfg.Metrics)
			if err != nil {
				return err
			}
			if err := metrics.StartMetricsServer(); err != nil {
				return err
			}

			ctx := cmd.Context()

			var tracer *telemetry.Tracer
			if tcfg.Tracing.Enabled {
				tracer, err = telemetry.NewTracer(tcfg.Tracing, tcfg.ServiceName, tcfg.ServiceVersion, tcfg.Environment)
				if err != nil {
					return err
				}
				defer func() {
					if err := tracer.Shutdown(context.Background()); err != nil {
						log.WithError(err).Warn("tracer shutdown failed")
					}
				}()
			}

			r := newResolver(m, log, metrics, tracer)

			res, err := r.Resolve(ctx, m.Repository, m.Features)
			if err != nil {
				return err
			}

			if m.Store.Path != "" {
				store, err := openStore(ctx, m.Store.Path)
				if err != nil {
					return fmt.Errorf("failed to open resolution store: %w", err)
				}
				defer store.Close()

				if err := stores.RecordResult(ctx, store, res); err != nil {
					return fmt.Errorf("failed to record resolution: %w", err)
				}
				log.WithRunID(res.RunID).Debug("resolution recorded")
			}

			if apply {
				sink := provision.NewLogSink(log)
				if err := provision.Apply(ctx, sink, res.Directives); err != nil {
					return err
				}
			}

			return printResult(res)
		},
	}

	cmd.Flags().StringVarP(&flags.repository, "repository", "r", "", "root repository descriptor location")
	cmd.Flags().StringSliceVarP(&flags.features, "feature", "f", nil, "feature to resolve (repeatable)")
	cmd.Flags().IntVar(&flags.startLevel, "start-level", 0, "default bundle start level")
	cmd.Flags().StringVar(&flags.workDir, "work-dir", "", "directory for config file deployment")
	cmd.Flags().StringVar(&flags.storePath, "store", "", "SQLite database for resolution history")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply the directives to the logging sink")

	return cmd
}
