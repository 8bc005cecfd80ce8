package provision

import (
	"context"
	"strings"
	"testing"

	"github.com/provisio/provisio/pkg/resolver"
)

func sampleDirectives() []resolver.Directive {
	return []resolver.Directive{
		{
			Kind:   resolver.DirectiveInstallBundle,
			Bundle: &resolver.BundleDirective{URI: "uri:a", StartLevel: 60, Start: true},
		},
		{
			Kind:   resolver.DirectiveApplyConfig,
			Config: &resolver.ConfigDirective{PID: "app", Properties: map[string]string{"k": "v"}},
		},
		{
			Kind: resolver.DirectiveDeployFile,
			File: &resolver.FileDirective{SourceURI: "uri:f", FileName: "etc/app.cfg"},
		},
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	sink := NewRecordSink()
	directives := sampleDirectives()

	if err := Apply(context.Background(), sink, directives); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.Applied) != len(directives) {
		t.Fatalf("expected %d applied directives, got %d", len(directives), len(sink.Applied))
	}
	for i, d := range sink.Applied {
		if d.Kind != directives[i].Kind {
			t.Errorf("directive %d: expected kind %s, got %s", i, directives[i].Kind, d.Kind)
		}
	}
}

func TestApplyStopsAtFirstError(t *testing.T) {
	sink := NewRecordSink()
	sink.FailAt = 1

	err := Apply(context.Background(), sink, sampleDirectives())
	if err == nil {
		t.Fatal("expected an error from the failing sink")
	}
	if !strings.Contains(err.Error(), "directive 1") {
		t.Errorf("error must name the failing directive, got %q", err)
	}
	if !strings.Contains(err.Error(), string(resolver.DirectiveApplyConfig)) {
		t.Errorf("error must name the directive kind, got %q", err)
	}

	// Only the directive before the failure was applied.
	if len(sink.Applied) != 1 {
		t.Errorf("expected 1 applied directive, got %d", len(sink.Applied))
	}
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	err := Apply(context.Background(), NewRecordSink(), []resolver.Directive{{Kind: "reboot"}})
	if err == nil {
		t.Fatal("expected an error for an unknown directive kind")
	}
	if !strings.Contains(err.Error(), "reboot") {
		t.Errorf("error must name the unknown kind, got %q", err)
	}
}

func TestLogSinkAcceptsEverything(t *testing.T) {
	sink := NewLogSink(nil)
	if err := Apply(context.Background(), sink, sampleDirectives()); err != nil {
		t.Fatalf("log sink must never fail: %v", err)
	}
}
