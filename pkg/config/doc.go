// Package config loads and validates provisio manifests. A manifest is a
// YAML document naming the root feature repository, the features to
// select, and the optional deployment and telemetry settings for a run.
package config
