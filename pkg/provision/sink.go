// Package provision executes resolved provisioning directives against a
// Sink. The resolver decides WHAT to provision; a Sink decides HOW it lands
// on the target. The package ships a logging sink for dry runs and a
// recording sink for tests; real targets plug in their own.
package provision

import (
	"context"
	"fmt"

	"github.com/provisio/provisio/pkg/resolver"
	"github.com/provisio/provisio/pkg/telemetry"
)

// Sink receives provisioning directives in resolution order.
type Sink interface {
	// InstallBundle installs a bundle artifact.
	InstallBundle(ctx context.Context, bundle *resolver.BundleDirective) error

	// ApplyConfig applies a named or factory configuration.
	ApplyConfig(ctx context.Context, config *resolver.ConfigDirective) error

	// DeployFile places a file under the target's working directory.
	DeployFile(ctx context.Context, file *resolver.FileDirective) error
}

// Apply dispatches directives to the sink in order. The first sink error
// aborts the run; directives already applied stay applied.
func Apply(ctx context.Context, sink Sink, directives []resolver.Directive) error {
	for i, d := range directives {
		if err := applyOne(ctx, sink, d); err != nil {
			return fmt.Errorf("directive %d (%s): %w", i, d.Kind, err)
		}
	}
	return nil
}

func applyOne(ctx context.Context, sink Sink, d resolver.Directive) error {
	switch d.Kind {
	case resolver.DirectiveInstallBundle:
		return sink.InstallBundle(ctx, d.Bundle)
	case resolver.DirectiveApplyConfig:
		return sink.ApplyConfig(ctx, d.Config)
	case resolver.DirectiveDeployFile:
		return sink.DeployFile(ctx, d.File)
	default:
		return fmt.Errorf("unknown directive kind %q", d.Kind)
	}
}

// LogSink writes each directive to the log without touching any target.
// It backs dry runs and the CLI's default output mode.
type LogSink struct {
	log *telemetry.Logger
}

// NewLogSink creates a logging sink. A nil logger is replaced with a no-op
// logger, which makes the sink silent.
func NewLogSink(log *telemetry.Logger) *LogSink {
	if log == nil {
		log = telemetry.NewNopLogger()
	}
	return &LogSink{log: log.WithField("component", "provision")}
}

func (s *LogSink) InstallBundle(_ context.Context, bundle *resolver.BundleDirective) error {
	s.log.WithField("uri", bundle.URI).
		WithField("start_level", bundle.StartLevel).
		WithField("start", bundle.Start).
		Info("install bundle")
	return nil
}

func (s *LogSink) ApplyConfig(_ context.Context, config *resolver.ConfigDirective) error {
	s.log.WithPID(config.PID).
		WithField("factory", config.Factory).
		WithField("properties", len(config.Properties)).
		Info("apply configuration")
	return nil
}

func (s *LogSink) DeployFile(_ context.Context, file *resolver.FileDirective) error {
	s.log.WithFile(file.FileName).
		WithField("source", file.SourceURI).
		Info("deploy file")
	return nil
}

// RecordSink captures every directive it receives, in order. It can be
// primed to fail at a given call index to exercise error paths.
type RecordSink struct {
	// Applied holds the directives received so far.
	Applied []resolver.Directive

	// FailAt, when non-negative, makes the call with that index fail.
	FailAt int
}

// NewRecordSink creates a recording sink that never fails.
func NewRecordSink() *RecordSink {
	return &RecordSink{FailAt: -1}
}

func (s *RecordSink) record(d resolver.Directive) error {
	if s.FailAt >= 0 && len(s.Applied) == s.FailAt {
		return fmt.Errorf("sink failure injected at index %d", s.FailAt)
	}
	s.Applied = append(s.Applied, d)
	return nil
}

func (s *RecordSink) InstallBundle(_ context.Context, bundle *resolver.BundleDirective) error {
	return s.record(resolver.Directive{Kind: resolver.DirectiveInstallBundle, Bundle: bundle})
}

func (s *RecordSink) ApplyConfig(_ context.Context, config *resolver.ConfigDirective) error {
	return s.record(resolver.Directive{Kind: resolver.DirectiveApplyConfig, Config: config})
}

func (s *RecordSink) DeployFile(_ context.Context, file *resolver.FileDirective) error {
	return s.record(resolver.Directive{Kind: resolver.DirectiveDeployFile, File: file})
}
