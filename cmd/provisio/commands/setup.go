package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/provisio/provisio/pkg/config"
	"github.com/provisio/provisio/pkg/repo"
	"github.com/provisio/provisio/pkg/resolver"
	"github.com/provisio/provisio/pkg/stores"
	"github.com/provisio/provisio/pkg/telemetry"
)

// resolveFlags holds the per-command flags that can override the manifest.
type resolveFlags struct {
	repository string
	features   []string
	startLevel int
	workDir    string
	storePath  string
}

// loadManifest builds the effective manifest from the --config file, if
// given, with command-line flags taking precedence.
func loadManifest(flags resolveFlags) (*config.Manifest, error) {
	var m *config.Manifest
	if configPath != "" {
		loaded, err := config.Load(afero.NewOsFs(), configPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	} else {
		m = &config.Manifest{DefaultStartLevel: resolver.DefaultStartLevel}
	}

	if flags.repository != "" {
		m.Repository = flags.repository
	}
	if len(flags.features) > 0 {
		m.Features = flags.features
	}
	if flags.startLevel > 0 {
		m.DefaultStartLevel = flags.startLevel
	}
	if flags.workDir != "" {
		m.WorkDir = flags.workDir
	}
	if flags.storePath != "" {
		m.Store.Path = flags.storePath
	}
	if verbose {
		m.Telemetry.LogLevel = "debug"
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// newLogger creates the run logger from the manifest telemetry settings.
func newLogger(m *config.Manifest) (*telemetry.Logger, error) {
	cfg := m.TelemetryConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return telemetry.NewLogger(cfg.Logging)
}

// newResolver wires the resolver from the manifest.
func newResolver(m *config.Manifest, log *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *resolver.Resolver {
	fetcher := repo.NewFetcher()
	opts := []resolver.Option{
		resolver.WithFetcher(fetcher),
		resolver.WithDefaultStartLevel(m.DefaultStartLevel),
		resolver.WithLogger(log),
	}
	if m.WorkDir != "" {
		opts = append(opts, resolver.WithWorkDir(m.WorkDir))
	}
	if metrics != nil {
		opts = append(opts, resolver.WithMetrics(metrics))
	}
	if tracer != nil {
		opts = append(opts, resolver.WithTracer(tracer))
	}
	return resolver.New(repo.NewLoader(fetcher), opts...)
}

// openStore opens and migrates the resolution history store.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// printResult writes the resolution result to stdout, as JSON when the
// --json flag is set and as a readable listing otherwise.
func printResult(res *resolver.Result) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Resolution %s\n", res.RunID)
	fmt.Printf("  root:     %s\n", res.Root)
	fmt.Printf("  features: %s (%d resolved)\n", strings.Join(res.Requested, ", "), res.FeaturesResolved)
	fmt.Printf("  duration: %s\n", res.Duration)

	fmt.Printf("\nDirectives (%d):\n", len(res.Directives))
	for i, d := range res.Directives {
		fmt.Printf("  %3d. %s\n", i+1, formatDirective(d))
	}

	if len(res.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Printf("  [%s] %s\n", w.Code, w.Message)
		}
	}

	return nil
}

func formatDirective(d resolver.Directive) string {
	switch d.Kind {
	case resolver.DirectiveInstallBundle:
		return fmt.Sprintf("install bundle %s (level %d, start %t)",
			d.Bundle.URI, d.Bundle.StartLevel, d.Bundle.Start)
	case resolver.DirectiveApplyConfig:
		kind := "configuration"
		if d.Config.Factory {
			kind = "factory configuration"
		}
		return fmt.Sprintf("apply %s %s (%d properties)", kind, d.Config.PID, len(d.Config.Properties))
	case resolver.DirectiveDeployFile:
		return fmt.Sprintf("deploy %s to %s", d.File.SourceURI, d.File.FileName)
	default:
		return string(d.Kind)
	}
}
