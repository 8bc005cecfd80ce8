package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/provisio/provisio/pkg/resolver"
	"github.com/provisio/provisio/pkg/telemetry"
)

// Manifest describes one resolution run: the root repository, the feature
// selection, and the optional deployment and persistence settings.
type Manifest struct {
	// Repository is the location of the root feature repository descriptor.
	Repository string `yaml:"repository" validate:"required"`

	// Features is the selection of features to provision.
	Features []string `yaml:"features" validate:"required,min=1,dive,required"`

	// DefaultStartLevel applies to bundles without an explicit level.
	DefaultStartLevel int `yaml:"default_start_level" validate:"gte=0"`

	// WorkDir is where config files are deployed. Empty disables deployment.
	WorkDir string `yaml:"work_dir"`

	// Store configures optional resolution history persistence.
	Store StoreSettings `yaml:"store"`

	// Telemetry configures logging, tracing, and metrics.
	Telemetry TelemetrySettings `yaml:"telemetry"`
}

// StoreSettings configures the resolution history database.
type StoreSettings struct {
	// Path is the SQLite database file. Empty disables recording.
	Path string `yaml:"path"`
}

// TelemetrySettings is the manifest-level telemetry surface. Unset fields
// fall back to the telemetry defaults.
type TelemetrySettings struct {
	LogLevel        string  `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	LogFormat       string  `yaml:"log_format" validate:"omitempty,oneof=console json"`
	TracingEnabled  bool    `yaml:"tracing_enabled"`
	TracingExporter string  `yaml:"tracing_exporter" validate:"omitempty,oneof=otlp stdout none"`
	TracingEndpoint string  `yaml:"tracing_endpoint"`
	SamplingRate    float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	MetricsEnabled  bool    `yaml:"metrics_enabled"`
	MetricsAddress  string  `yaml:"metrics_address"`
}

var validate = validator.New()

// Load reads and validates a manifest from a file.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads and validates a manifest from a reader.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{
		DefaultStartLevel: resolver.DefaultStartLevel,
	}

	dec := yaml.NewDecoder(r)
	// Unknown keys are rejected so a typo fails loudly instead of being
	// silently ignored.
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Validate checks the manifest against its declared constraints.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, ve := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", ve.Namespace(), ve.Tag()))
			}
			return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// TelemetryConfig merges the manifest's telemetry settings over the
// telemetry defaults.
func (m *Manifest) TelemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()

	if m.Telemetry.LogLevel != "" {
		cfg.Logging.Level = m.Telemetry.LogLevel
	}
	if m.Telemetry.LogFormat != "" {
		cfg.Logging.Format = m.Telemetry.LogFormat
	}

	cfg.Tracing.Enabled = m.Telemetry.TracingEnabled
	if m.Telemetry.TracingExporter != "" {
		cfg.Tracing.Exporter = m.Telemetry.TracingExporter
	}
	if m.Telemetry.TracingEndpoint != "" {
		cfg.Tracing.Endpoint = m.Telemetry.TracingEndpoint
	}
	if m.Telemetry.SamplingRate > 0 {
		cfg.Tracing.SamplingRate = m.Telemetry.SamplingRate
	}

	cfg.Metrics.Enabled = m.Telemetry.MetricsEnabled
	if m.Telemetry.MetricsAddress != "" {
		cfg.Metrics.ListenAddress = m.Telemetry.MetricsAddress
	}

	return cfg
}
