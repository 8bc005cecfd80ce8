package descriptor

import (
	"errors"
	"strings"
	"testing"
)

const sampleDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<features name="base-repo">
  <repository>http://example.org/extra/features.xml</repository>
  <feature name="core" version="1.2.0">
    <details>Core runtime support.</details>
    <feature>transport</feature>
    <bundle start-level="10" start="false">mvn:org.example/core/1.2.0</bundle>
    <bundle dependency="true">mvn:org.example/core-api/1.2.0</bundle>
    <config name="org.example.core">
      a=1
      b=2
    </config>
    <configfile finalname="etc/core.cfg">http://example.org/core.cfg</configfile>
  </feature>
  <feature name="extra" version="0.1" resolver="obr"/>
</features>`

func TestParseRepository(t *testing.T) {
	repo, err := NewParser().Parse(strings.NewReader(sampleDescriptor))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if repo.Name != "base-repo" {
		t.Errorf("expected repository name %q, got %q", "base-repo", repo.Name)
	}

	if len(repo.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(repo.Entries))
	}

	if repo.Entries[0].Kind != EntryReference {
		t.Fatalf("expected first entry to be a reference, got %s", repo.Entries[0].Kind)
	}
	if got := repo.Entries[0].Reference; got != "http://example.org/extra/features.xml" {
		t.Errorf("unexpected reference: %q", got)
	}

	if repo.Entries[1].Kind != EntryFeature {
		t.Fatalf("expected second entry to be a feature, got %s", repo.Entries[1].Kind)
	}

	feat := repo.Entries[1].Feature
	if feat.Name != "core" || feat.Version != "1.2.0" {
		t.Errorf("unexpected feature identity: %s/%s", feat.Name, feat.Version)
	}
	if feat.Resolver != "" {
		t.Errorf("expected empty resolver, got %q", feat.Resolver)
	}

	wantKinds := []ContentKind{
		ContentDetails,
		ContentDependency,
		ContentBundle,
		ContentBundle,
		ContentConfig,
		ContentConfigFile,
	}
	if len(feat.Content) != len(wantKinds) {
		t.Fatalf("expected %d content entries, got %d", len(wantKinds), len(feat.Content))
	}
	for i, kind := range wantKinds {
		if feat.Content[i].Kind != kind {
			t.Errorf("content[%d]: expected kind %s, got %s", i, kind, feat.Content[i].Kind)
		}
	}

	if dep := feat.Content[1].Dependency; dep != "transport" {
		t.Errorf("unexpected dependency target: %q", dep)
	}

	first := feat.Content[2].Bundle
	if first.URI != "mvn:org.example/core/1.2.0" {
		t.Errorf("unexpected bundle URI: %q", first.URI)
	}
	if first.StartLevel == nil || *first.StartLevel != 10 {
		t.Errorf("expected start level 10, got %v", first.StartLevel)
	}
	if first.Start == nil || *first.Start {
		t.Errorf("expected start=false, got %v", first.Start)
	}
	if first.Dependency != nil {
		t.Errorf("expected dependency attribute unset, got %v", first.Dependency)
	}

	second := feat.Content[3].Bundle
	if second.StartLevel != nil || second.Start != nil {
		t.Errorf("expected unset level/start, got %v/%v", second.StartLevel, second.Start)
	}
	if second.Dependency == nil || !*second.Dependency {
		t.Errorf("expected dependency=true, got %v", second.Dependency)
	}

	cfg := feat.Content[4].Config
	if cfg.PID != "org.example.core" {
		t.Errorf("unexpected config PID: %q", cfg.PID)
	}
	if !strings.Contains(cfg.Text, "a=1") || !strings.Contains(cfg.Text, "b=2") {
		t.Errorf("config text lost properties: %q", cfg.Text)
	}

	file := feat.Content[5].ConfigFile
	if file.SourceURI != "http://example.org/core.cfg" || file.FinalName != "etc/core.cfg" {
		t.Errorf("unexpected configfile entry: %+v", file)
	}

	if got := repo.Entries[2].Feature.Resolver; got != "obr" {
		t.Errorf("expected resolver attribute to survive, got %q", got)
	}
}

func TestParseNotRepositoryRoot(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "wrong root element", input: `<bundles name="x"><bundle>uri</bundle></bundles>`},
		{name: "empty document", input: ``},
		{name: "comment only", input: `<!-- nothing here -->`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(strings.NewReader(tt.input))
			if !errors.Is(err, ErrNotRepository) {
				t.Fatalf("expected ErrNotRepository, got %v", err)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader(`<features name="x"><feature name="a">`))
	if err == nil {
		t.Fatal("expected error for truncated document")
	}
	if errors.Is(err, ErrNotRepository) {
		t.Fatalf("truncated document must not be reported as wrong root: %v", err)
	}
}

func TestParseInvalidBundleAttributes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "non-numeric start level",
			input: `<features name="x"><feature name="a"><bundle start-level="soon">uri</bundle></feature></features>`,
		},
		{
			name:  "non-boolean start",
			input: `<features name="x"><feature name="a"><bundle start="maybe">uri</bundle></feature></features>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser().Parse(strings.NewReader(tt.input)); err == nil {
				t.Fatal("expected attribute error")
			}
		})
	}
}

func TestParseSkipsUnknownElements(t *testing.T) {
	input := `<features name="x">
	  <unknown><nested/></unknown>
	  <feature name="a">
	    <mystery attr="1">ignored</mystery>
	    <bundle>uri</bundle>
	  </feature>
	</features>`

	repo, err := NewParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.Entries))
	}
	feat := repo.Entries[0].Feature
	if len(feat.Content) != 1 || feat.Content[0].Kind != ContentBundle {
		t.Fatalf("expected single bundle entry, got %+v", feat.Content)
	}
}

func TestParserReuse(t *testing.T) {
	p := NewParser()
	for i := 0; i < 3; i++ {
		repo, err := p.Parse(strings.NewReader(sampleDescriptor))
		if err != nil {
			t.Fatalf("parse %d failed: %v", i, err)
		}
		if len(repo.Entries) != 3 {
			t.Fatalf("parse %d: expected 3 entries, got %d", i, len(repo.Entries))
		}
	}
}
