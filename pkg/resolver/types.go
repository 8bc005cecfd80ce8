package resolver

import (
	"time"
)

// DirectiveKind discriminates the provisioning directive variants.
type DirectiveKind string

const (
	// DirectiveInstallBundle installs a bundle from a URI.
	DirectiveInstallBundle DirectiveKind = "install-bundle"

	// DirectiveApplyConfig applies a named or factory configuration.
	DirectiveApplyConfig DirectiveKind = "apply-config"

	// DirectiveDeployFile copies a file into the working directory.
	DirectiveDeployFile DirectiveKind = "deploy-file"
)

// Directive is one normalized provisioning instruction, ready for a host
// to execute. It is a tagged variant: exactly one payload field is
// populated, selected by Kind.
type Directive struct {
	Kind DirectiveKind `json:"kind"`

	Bundle *BundleDirective `json:"bundle,omitempty"`
	Config *ConfigDirective `json:"config,omitempty"`
	File   *FileDirective   `json:"file,omitempty"`
}

// BundleDirective installs a bundle with a start level and start flag.
type BundleDirective struct {
	// URI locates the bundle artifact.
	URI string `json:"uri"`

	// StartLevel orders activation relative to other bundles.
	StartLevel int `json:"start_level"`

	// Start controls whether the bundle is started after installation.
	Start bool `json:"start"`
}

// ConfigDirective applies a configuration with a property mapping.
type ConfigDirective struct {
	// PID is the configuration PID. For factory configurations this is the
	// factory PID (the part of the raw name before the first hyphen).
	PID string `json:"pid"`

	// Factory marks a factory configuration.
	Factory bool `json:"factory"`

	// Properties is the parsed key/value mapping.
	Properties map[string]string `json:"properties"`
}

// FileDirective copies a file from a source URI to a destination name
// under the working directory.
type FileDirective struct {
	SourceURI string `json:"source_uri"`
	FileName  string `json:"file_name"`
}

// WarningCode identifies the non-fatal condition a warning reports.
type WarningCode string

const (
	// WarnCyclicReference marks a repository reference seen more than once.
	WarnCyclicReference WarningCode = "cyclic-reference"

	// WarnNestedRepository marks a nested repository that failed to load.
	WarnNestedRepository WarningCode = "nested-repository"

	// WarnUnsupportedResolver marks a feature rejected for naming a
	// resolution strategy.
	WarnUnsupportedResolver WarningCode = "unsupported-resolver"

	// WarnInvalidProperties marks a config entry whose properties text
	// failed to parse.
	WarnInvalidProperties WarningCode = "invalid-properties"

	// WarnDeployFailed marks a config file whose copy failed.
	WarnDeployFailed WarningCode = "deploy-failed"

	// WarnNoWorkDir marks a config file skipped because no working
	// directory was configured.
	WarnNoWorkDir WarningCode = "no-workdir"

	// WarnDependencyBundle marks a bundle carrying the unsupported
	// dependency attribute; the bundle is still installed.
	WarnDependencyBundle WarningCode = "dependency-bundle"

	// WarnUnmetDependency marks a feature dependency not covered by this
	// resolution. Advisory only.
	WarnUnmetDependency WarningCode = "unmet-dependency"
)

// Warning is a non-fatal finding produced during resolution, carrying
// enough context to diagnose the affected reference, feature, PID, or file.
type Warning struct {
	Code      WarningCode `json:"code"`
	Message   string      `json:"message"`
	Reference string      `json:"reference,omitempty"`
	Feature   string      `json:"feature,omitempty"`
	PID       string      `json:"pid,omitempty"`
	File      string      `json:"file,omitempty"`
}

// Result is the product of one resolution run.
type Result struct {
	// RunID uniquely identifies this resolution run.
	RunID string `json:"run_id"`

	// Root is the root repository location that was resolved.
	Root string `json:"root"`

	// Requested is the feature selection the caller asked for.
	Requested []string `json:"requested"`

	// Directives is the ordered provisioning output: depth-first repository
	// traversal order, then descriptor entry order within each feature.
	Directives []Directive `json:"directives"`

	// Warnings lists every non-fatal finding, in the order produced.
	Warnings []Warning `json:"warnings"`

	// FeaturesResolved counts the selected features that were translated.
	FeaturesResolved int `json:"features_resolved"`

	// StartedAt is when the resolution began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the resolution took.
	Duration time.Duration `json:"duration"`
}

// DefaultStartLevel is the start level applied to bundles that do not
// declare their own.
const DefaultStartLevel = 60
