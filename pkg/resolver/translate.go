package resolver

import (
	"context"
	"strings"

	"github.com/magiconair/properties"

	"github.com/provisio/provisio/pkg/descriptor"
	"github.com/provisio/provisio/pkg/telemetry"
)

// translateFeature converts one collected feature into directives appended
// to res. Features not in the requested set are skipped silently. Features
// naming a resolution strategy are rejected whole: none of their content is
// translated.
func (r *Resolver) translateFeature(ctx context.Context, log *telemetry.Logger, feat *descriptor.Feature, requested map[string]struct{}, res *Result) {
	if _, ok := requested[feat.Name]; !ok {
		return
	}

	log = log.WithFeature(feat.Name)
	log.WithField("version", feat.Version).Info("provisioning feature")

	if feat.Resolver != "" {
		log.WithField("resolver", feat.Resolver).
			Error("feature names a resolution strategy, which is not supported; the feature will be ignored")
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnUnsupportedResolver,
			Message: "resolution strategy " + feat.Resolver + " is not supported, feature ignored",
			Feature: feat.Name,
		})
		r.metrics.RecordFeatureSkipped("unsupported-resolver")
		return
	}

	for _, entry := range feat.Content {
		switch entry.Kind {
		case descriptor.ContentDependency:
			r.translateDependency(log, feat.Name, entry.Dependency, requested, res)
		case descriptor.ContentBundle:
			r.translateBundle(log, feat.Name, entry.Bundle, res)
		case descriptor.ContentConfig:
			r.translateConfig(log, feat.Name, entry.Config, res)
		case descriptor.ContentConfigFile:
			r.translateConfigFile(ctx, log, feat.Name, entry.ConfigFile, res)
		case descriptor.ContentDetails:
			// Display text for listings; nothing to provision.
		}
	}

	res.FeaturesResolved++
	r.metrics.RecordFeatureResolved()
}

// translateDependency handles a feature dependency entry. Dependencies are
// advisory: they never trigger installation and never produce a directive.
func (r *Resolver) translateDependency(log *telemetry.Logger, feature, target string, requested map[string]struct{}, res *Result) {
	if _, ok := requested[target]; ok {
		return
	}

	log.WithField("dependency", target).
		Info("feature depends on a feature outside this resolution; it must be provided by other means")
	res.Warnings = append(res.Warnings, Warning{
		Code:    WarnUnmetDependency,
		Message: "dependency on feature " + target + " is not covered by this resolution",
		Feature: feature,
	})
}

func (r *Resolver) translateBundle(log *telemetry.Logger, feature string, bundle *descriptor.Bundle, res *Result) {
	level := r.defaultStartLevel
	if bundle.StartLevel != nil {
		level = *bundle.StartLevel
	}

	// Bundles start unless the descriptor says otherwise.
	start := bundle.Start == nil || *bundle.Start

	if bundle.Dependency != nil && *bundle.Dependency {
		log.WithField("uri", bundle.URI).
			Warn("the dependency bundle attribute is not supported and will be ignored")
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnDependencyBundle,
			Message: "dependency attribute on bundle " + bundle.URI + " is not supported and was ignored",
			Feature: feature,
		})
	}

	res.Directives = append(res.Directives, Directive{
		Kind: DirectiveInstallBundle,
		Bundle: &BundleDirective{
			URI:        bundle.URI,
			StartLevel: level,
			Start:      start,
		},
	})
	r.metrics.RecordDirective(string(DirectiveInstallBundle))
}

func (r *Resolver) translateConfig(log *telemetry.Logger, feature string, cfg *descriptor.Config, res *Result) {
	props, err := parseProperties(cfg.Text)
	if err != nil {
		log.WithPID(cfg.PID).WithError(err).
			Error("cannot read the properties for configuration, skipping entry")
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnInvalidProperties,
			Message: "invalid properties text: " + err.Error(),
			Feature: feature,
			PID:     cfg.PID,
		})
		return
	}

	pid := cfg.PID
	factory := false
	if idx := strings.Index(pid, "-"); idx > -1 {
		// A hyphen in the raw name marks a factory configuration; the part
		// before the first hyphen is the factory PID.
		pid = pid[:idx]
		factory = true
		log.WithPID(pid).Debug("provisioning factory configuration")
	} else {
		log.WithPID(pid).Debug("provisioning configuration")
	}

	res.Directives = append(res.Directives, Directive{
		Kind: DirectiveApplyConfig,
		Config: &ConfigDirective{
			PID:        pid,
			Factory:    factory,
			Properties: props,
		},
	})
	r.metrics.RecordDirective(string(DirectiveApplyConfig))
}

func (r *Resolver) translateConfigFile(ctx context.Context, log *telemetry.Logger, feature string, file *descriptor.ConfigFile, res *Result) {
	if r.workDir == "" {
		log.WithFile(file.FinalName).
			Warn("no working directory configured, config file will not be deployed")
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnNoWorkDir,
			Message: "no working directory configured, deployment of " + file.SourceURI + " skipped",
			Feature: feature,
			File:    file.FinalName,
		})
		return
	}

	res.Directives = append(res.Directives, Directive{
		Kind: DirectiveDeployFile,
		File: &FileDirective{
			SourceURI: strings.TrimSpace(file.SourceURI),
			FileName:  file.FinalName,
		},
	})
	r.metrics.RecordDirective(string(DirectiveDeployFile))

	if err := r.deployFile(ctx, file); err != nil {
		log.WithFile(file.FinalName).WithError(err).
			Error("deployment of config file failed and will not take place")
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnDeployFailed,
			Message: "deployment failed: " + err.Error(),
			Feature: feature,
			File:    file.FinalName,
		})
	}
}

// parseProperties parses newline-delimited key=value pairs in standard
// properties syntax. Expansion of ${} references is disabled: values are
// taken literally, as the host configuration layer expects.
func parseProperties(text string) (map[string]string, error) {
	loader := &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
	p, err := loader.LoadBytes([]byte(text))
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}
