package descriptor

// EntryKind discriminates the two kinds of top-level repository entries.
type EntryKind string

const (
	// EntryReference is a reference to another repository descriptor,
	// identified by its literal location string.
	EntryReference EntryKind = "reference"

	// EntryFeature is an inline feature definition.
	EntryFeature EntryKind = "feature"
)

// Repository is a parsed repository descriptor. It is immutable after
// decoding and owned by the call that produced it; loaders never cache or
// share instances.
type Repository struct {
	// Name is the informational repository name from the root element.
	Name string `json:"name"`

	// Entries holds the repository's children in document order.
	Entries []Entry `json:"entries"`
}

// Entry is a tagged variant over the top-level children of a repository.
// Exactly one payload field is populated, selected by Kind.
type Entry struct {
	Kind EntryKind `json:"kind"`

	// Reference is the location of another repository (Kind == EntryReference).
	Reference string `json:"reference,omitempty"`

	// Feature is an inline feature definition (Kind == EntryFeature).
	Feature *Feature `json:"feature,omitempty"`
}

// Feature is a named, versioned unit of provisioning content.
type Feature struct {
	// Name is the selection and dependency key. Required.
	Name string `json:"name"`

	// Version is informational only; it takes no part in comparisons.
	Version string `json:"version,omitempty"`

	// Resolver names a pluggable resolution strategy. Resolution strategies
	// are not supported: a non-empty value marks the feature as unsupported
	// and the whole feature is rejected during translation.
	Resolver string `json:"resolver,omitempty"`

	// Content holds the feature's body in document order.
	Content []Content `json:"content,omitempty"`
}

// ContentKind discriminates the kinds of feature content entries.
type ContentKind string

const (
	// ContentDependency references another feature by name. Advisory only.
	ContentDependency ContentKind = "dependency"

	// ContentBundle is an installable bundle entry.
	ContentBundle ContentKind = "bundle"

	// ContentConfig is a configuration block keyed by PID.
	ContentConfig ContentKind = "config"

	// ContentConfigFile is a file to deploy into the working directory.
	ContentConfigFile ContentKind = "configfile"

	// ContentDetails is free-form descriptive text. Ignored by resolution.
	ContentDetails ContentKind = "details"
)

// Content is a tagged variant over feature content entries. Exactly one
// payload field is populated, selected by Kind.
type Content struct {
	Kind ContentKind `json:"kind"`

	// Dependency is the name of the referenced feature (Kind == ContentDependency).
	Dependency string `json:"dependency,omitempty"`

	// Bundle is a bundle entry (Kind == ContentBundle).
	Bundle *Bundle `json:"bundle,omitempty"`

	// Config is a configuration block (Kind == ContentConfig).
	Config *Config `json:"config,omitempty"`

	// ConfigFile is a file deployment entry (Kind == ContentConfigFile).
	ConfigFile *ConfigFile `json:"configfile,omitempty"`

	// Details is descriptive text (Kind == ContentDetails).
	Details string `json:"details,omitempty"`
}

// Bundle is an installable bundle entry.
type Bundle struct {
	// URI locates the bundle artifact. Required.
	URI string `json:"uri"`

	// StartLevel orders bundle activation. Nil means "use the resolver's
	// configured default".
	StartLevel *int `json:"start_level,omitempty"`

	// Start controls whether the bundle is started after installation.
	// Nil means true.
	Start *bool `json:"start,omitempty"`

	// Dependency marks the bundle as a dependency bundle. The attribute is
	// parsed but not supported by resolution.
	Dependency *bool `json:"dependency,omitempty"`
}

// Config is a configuration block. Text is newline-delimited key=value
// pairs in standard properties syntax.
type Config struct {
	// PID names the configuration. A hyphen in the PID marks a factory
	// configuration; the part before the first hyphen is the factory PID.
	PID string `json:"pid"`

	// Text is the raw properties payload.
	Text string `json:"text"`
}

// ConfigFile is a file to deploy into the resolution working directory.
type ConfigFile struct {
	// SourceURI locates the file content. Required.
	SourceURI string `json:"source_uri"`

	// FinalName is the destination file name, relative to the working
	// directory. Required.
	FinalName string `json:"final_name"`
}
