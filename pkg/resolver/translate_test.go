package resolver

import (
	"context"
	"testing"

	"github.com/spf13/afero"
)

func TestResolveFactoryConfiguration(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<config name="myPid-1">a=1
b=2</config>
				<config name="myPid">x=y</config>
			</feature>
		</features>`,
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Directives) != 2 {
		t.Fatalf("expected 2 directives, got %d", len(res.Directives))
	}

	factory := res.Directives[0].Config
	if !factory.Factory {
		t.Error("expected factory configuration for hyphenated PID")
	}
	if factory.PID != "myPid" {
		t.Errorf("expected factory PID %q, got %q", "myPid", factory.PID)
	}
	if factory.Properties["a"] != "1" || factory.Properties["b"] != "2" {
		t.Errorf("unexpected properties: %v", factory.Properties)
	}

	plain := res.Directives[1].Config
	if plain.Factory {
		t.Error("PID without hyphen must not be a factory configuration")
	}
	if plain.PID != "myPid" || plain.Properties["x"] != "y" {
		t.Errorf("unexpected plain configuration: %+v", plain)
	}
}

func TestResolveBundleDefaults(t *testing.T) {
	bodies := staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<bundle>uri:plain</bundle>
				<bundle start-level="5" start="false">uri:explicit</bundle>
			</feature>
		</features>`,
	}

	t.Run("built-in default", func(t *testing.T) {
		r := newTestResolver(bodies)
		res, err := r.Resolve(context.Background(), "root", []string{"f"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		plain := res.Directives[0].Bundle
		if plain.StartLevel != 60 || !plain.Start {
			t.Errorf("expected start level 60 and start=true, got %+v", plain)
		}

		explicit := res.Directives[1].Bundle
		if explicit.StartLevel != 5 || explicit.Start {
			t.Errorf("expected start level 5 and start=false, got %+v", explicit)
		}
	})

	t.Run("configured default", func(t *testing.T) {
		r := newTestResolver(bodies, WithDefaultStartLevel(80))
		res, err := r.Resolve(context.Background(), "root", []string{"f"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := res.Directives[0].Bundle.StartLevel; got != 80 {
			t.Errorf("expected configured default 80, got %d", got)
		}
		// An explicit start level always wins over the default.
		if got := res.Directives[1].Bundle.StartLevel; got != 5 {
			t.Errorf("expected declared level 5, got %d", got)
		}
	})
}

func TestResolveDependencyBundleStillInstalls(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<bundle dependency="true">uri:dep</bundle>
			</feature>
		</features>`,
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Directives) != 1 || res.Directives[0].Bundle.URI != "uri:dep" {
		t.Fatalf("unsupported attribute must not suppress installation, got %+v", res.Directives)
	}
	if len(warningsByCode(res.Warnings, WarnDependencyBundle)) != 1 {
		t.Errorf("expected one dependency-bundle warning, got %+v", res.Warnings)
	}
}

func TestResolveUnsupportedResolverSkipsWholeFeature(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f" resolver="obr">
				<bundle>uri:one</bundle>
				<config name="pid">a=1</config>
				<configfile finalname="f.cfg">uri:file</configfile>
			</feature>
			<feature name="g"><bundle>uri:two</bundle></feature>
		</features>`,
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f", "g"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Directives) != 1 || res.Directives[0].Bundle.URI != "uri:two" {
		t.Fatalf("expected only the supported feature's directive, got %+v", res.Directives)
	}
	unsupported := warningsByCode(res.Warnings, WarnUnsupportedResolver)
	if len(unsupported) != 1 {
		t.Fatalf("expected exactly one unsupported-resolver warning, got %+v", res.Warnings)
	}
	if unsupported[0].Feature != "f" {
		t.Errorf("warning must name the feature, got %q", unsupported[0].Feature)
	}
	if res.FeaturesResolved != 1 {
		t.Errorf("expected 1 resolved feature, got %d", res.FeaturesResolved)
	}
}

func TestResolveUnmetDependencyIsAdvisory(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<feature>present</feature>
				<feature>absent</feature>
				<bundle>uri:f</bundle>
			</feature>
			<feature name="present"><bundle>uri:present</bundle></feature>
		</features>`,
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f", "present"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Dependencies never produce directives, met or not.
	if len(res.Directives) != 2 {
		t.Fatalf("expected 2 bundle directives, got %+v", res.Directives)
	}

	unmet := warningsByCode(res.Warnings, WarnUnmetDependency)
	if len(unmet) != 1 {
		t.Fatalf("expected one unmet-dependency warning, got %+v", res.Warnings)
	}
	if unmet[0].Feature != "f" {
		t.Errorf("warning must name the depending feature, got %q", unmet[0].Feature)
	}
}

func TestResolveInvalidPropertiesSkipsEntryOnly(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<config name="broken">key=\uZZZZ</config>
				<config name="good">a=1</config>
			</feature>
		</features>`,
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Directives) != 1 {
		t.Fatalf("expected the valid config to survive, got %+v", res.Directives)
	}
	if res.Directives[0].Config.PID != "good" {
		t.Errorf("unexpected surviving config: %+v", res.Directives[0].Config)
	}
	invalid := warningsByCode(res.Warnings, WarnInvalidProperties)
	if len(invalid) != 1 || invalid[0].PID != "broken" {
		t.Errorf("expected one invalid-properties warning for %q, got %+v", "broken", res.Warnings)
	}
}

func TestResolveConfigFileWithoutWorkDir(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<configfile finalname="etc/app.cfg">uri:cfg</configfile>
			</feature>
		</features>`,
		"uri:cfg": "content",
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Directives) != 0 {
		t.Errorf("expected no directives without a working directory, got %+v", res.Directives)
	}
	if len(warningsByCode(res.Warnings, WarnNoWorkDir)) != 1 {
		t.Errorf("expected one no-workdir warning, got %+v", res.Warnings)
	}
}

func TestResolveConfigFileDeploys(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<configfile finalname="etc/app.cfg">uri:cfg</configfile>
			</feature>
		</features>`,
		"uri:cfg": "hello=world\n",
	}, WithWorkDir("/work"), WithFilesystem(fs))

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Directives) != 1 {
		t.Fatalf("expected one deploy directive, got %+v", res.Directives)
	}
	file := res.Directives[0].File
	if file.SourceURI != "uri:cfg" || file.FileName != "etc/app.cfg" {
		t.Errorf("unexpected deploy directive: %+v", file)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", res.Warnings)
	}

	content, err := afero.ReadFile(fs, "/work/etc/app.cfg")
	if err != nil {
		t.Fatalf("deployed file missing: %v", err)
	}
	if string(content) != "hello=world\n" {
		t.Errorf("unexpected deployed content: %q", content)
	}
}

func TestResolveConfigFileOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/work/app.cfg", []byte("previous content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<configfile finalname="app.cfg">uri:cfg</configfile>
			</feature>
		</features>`,
		"uri:cfg": "fresh",
	}, WithWorkDir("/work"), WithFilesystem(fs))

	if _, err := r.Resolve(context.Background(), "root", []string{"f"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := afero.ReadFile(fs, "/work/app.cfg")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "fresh" {
		t.Errorf("destination must be truncated before writing, got %q", content)
	}
}

func TestResolveConfigFileCopyFailureIsNonFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<configfile finalname="a.cfg">uri:absent</configfile>
				<bundle>uri:after</bundle>
			</feature>
		</features>`,
	}, WithWorkDir("/work"), WithFilesystem(fs))

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("copy failure must not abort resolution: %v", err)
	}

	failed := warningsByCode(res.Warnings, WarnDeployFailed)
	if len(failed) != 1 || failed[0].File != "a.cfg" {
		t.Errorf("expected one deploy-failed warning naming the file, got %+v", res.Warnings)
	}

	// The entry after the failing copy still translates.
	last := res.Directives[len(res.Directives)-1]
	if last.Kind != DirectiveInstallBundle || last.Bundle.URI != "uri:after" {
		t.Errorf("translation must continue after a copy failure, got %+v", res.Directives)
	}
}

func TestResolveDetailsAreIgnored(t *testing.T) {
	r := newTestResolver(staticFetcher{
		"root": `<features name="root">
			<feature name="f">
				<details>Long description shown in listings.</details>
				<bundle>uri:f</bundle>
			</feature>
		</features>`,
	})

	res, err := r.Resolve(context.Background(), "root", []string{"f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Directives) != 1 || len(res.Warnings) != 0 {
		t.Errorf("details entries must be silent, got %+v / %+v", res.Directives, res.Warnings)
	}
}

func TestParseProperties(t *testing.T) {
	props, err := parseProperties("a=1\nb = two\n# comment\nc=${a}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if props["a"] != "1" || props["b"] != "two" {
		t.Errorf("unexpected properties: %v", props)
	}
	// Expansion is disabled: values are literal.
	if props["c"] != "${a}" {
		t.Errorf("expected literal value, got %q", props["c"])
	}
}
