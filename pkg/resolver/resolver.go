package resolver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"

	"github.com/provisio/provisio/pkg/descriptor"
	"github.com/provisio/provisio/pkg/repo"
	"github.com/provisio/provisio/pkg/telemetry"
)

// Resolver resolves feature repositories into provisioning directives.
type Resolver struct {
	loader  *repo.Loader
	fetcher repo.Fetcher
	fs      afero.Fs

	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	defaultStartLevel int
	workDir           string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultStartLevel sets the start level applied to bundles that do not
// declare their own.
func WithDefaultStartLevel(level int) Option {
	return func(r *Resolver) { r.defaultStartLevel = level }
}

// WithWorkDir sets the working directory config files are deployed into.
// Without it, config file entries are skipped with a warning.
func WithWorkDir(dir string) Option {
	return func(r *Resolver) { r.workDir = dir }
}

// WithFilesystem sets the filesystem used for file deployments.
func WithFilesystem(fs afero.Fs) Option {
	return func(r *Resolver) { r.fs = fs }
}

// WithFetcher sets the fetcher used to retrieve config file sources.
func WithFetcher(f repo.Fetcher) Option {
	return func(r *Resolver) { r.fetcher = f }
}

// WithLogger sets the resolution logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithTracer sets the tracer used to span resolution phases.
func WithTracer(t *telemetry.Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// New creates a resolver on top of the given loader.
func New(loader *repo.Loader, opts ...Option) *Resolver {
	r := &Resolver{
		loader:            loader,
		fetcher:           repo.NewFetcher(),
		fs:                afero.NewOsFs(),
		log:               telemetry.NewNopLogger(),
		defaultStartLevel: DefaultStartLevel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads the repository graph rooted at root, selects the requested
// features, and translates them into provisioning directives. It fails only
// when the root repository itself cannot be loaded; every other problem is
// reported through the result's warnings.
func (r *Resolver) Resolve(ctx context.Context, root string, requested []string) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Root:      root,
		Requested: append([]string(nil), requested...),
		StartedAt: time.Now(),
	}

	log := r.log.WithRunID(res.RunID)

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.StartResolutionSpan(ctx, res.RunID, root)
		defer span.End()
	}

	r.metrics.RecordResolutionStarted()

	features, warnings, err := r.collect(ctx, log, root)
	if err != nil {
		res.Duration = time.Since(res.StartedAt)
		r.metrics.RecordResolutionCompleted("failed", res.Duration)
		return nil, err
	}
	res.Warnings = warnings

	requestedSet := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		requestedSet[name] = struct{}{}
	}

	for _, feat := range features {
		r.translateFeature(ctx, log, feat, requestedSet, res)
	}

	res.Duration = time.Since(res.StartedAt)
	for _, w := range res.Warnings {
		r.metrics.RecordWarning(string(w.Code))
	}
	r.metrics.RecordResolutionCompleted("completed", res.Duration)

	log.WithField("directives", len(res.Directives)).
		WithField("warnings", len(res.Warnings)).
		WithField("features", res.FeaturesResolved).
		Info("resolution completed")

	return res, nil
}

// Collect walks the repository graph rooted at root and returns every
// reachable feature definition in depth-first traversal order. Features are
// not deduplicated by name: a name appearing in two repositories yields two
// records.
func (r *Resolver) Collect(ctx context.Context, root string) ([]*descriptor.Feature, []Warning, error) {
	return r.collect(ctx, r.log, root)
}

func (r *Resolver) collect(ctx context.Context, log *telemetry.Logger, root string) ([]*descriptor.Feature, []Warning, error) {
	if r.tracer != nil {
		spanCtx, span := r.tracer.StartCollectSpan(ctx, root)
		ctx = spanCtx
		defer span.End()
	}

	// The root location counts as visited so a nested reference back to it
	// is treated as cyclic rather than reloaded.
	w := &walk{
		loader:  r.loader,
		log:     log,
		metrics: r.metrics,
		visited: map[string]struct{}{root: {}},
	}

	start := time.Now()
	record, err := r.loader.Load(ctx, root)
	if err != nil {
		r.metrics.RecordRepositoryLoad("failed", time.Since(start))
		return nil, nil, NewFatalError("failed to load root repository", err).
			WithCode(ErrCodeFetchOrParse).
			WithReference(root)
	}
	r.metrics.RecordRepositoryLoad("loaded", time.Since(start))

	log.WithRepository(record.Name).
		WithField("location", root).
		Info("loaded root repository")

	w.descend(ctx, record)
	return w.features, w.warnings, nil
}

// walk holds the mutable state of one collection pass. Its ownership is
// scoped to a single Collect call, so concurrent resolutions never share
// visited sets or output.
type walk struct {
	loader  *repo.Loader
	log     *telemetry.Logger
	metrics *telemetry.Metrics

	visited  map[string]struct{}
	features []*descriptor.Feature
	warnings []Warning
}

func (w *walk) descend(ctx context.Context, record *descriptor.Repository) {
	for _, entry := range record.Entries {
		switch entry.Kind {
		case descriptor.EntryFeature:
			w.features = append(w.features, entry.Feature)
		case descriptor.EntryReference:
			w.reference(ctx, entry.Reference)
		}
	}
}

// reference loads one nested repository reference and descends into it.
// References already visited are cyclic or duplicate and are skipped with a
// warning; load failures skip the subtree but never abort the walk.
func (w *walk) reference(ctx context.Context, ref string) {
	if _, seen := w.visited[ref]; seen {
		w.log.WithReference(ref).
			Warn("cyclic or duplicate repository reference, skipping; collected features may be incomplete")
		w.warnings = append(w.warnings, Warning{
			Code:      WarnCyclicReference,
			Message:   "cyclic or duplicate repository reference",
			Reference: ref,
		})
		return
	}
	w.visited[ref] = struct{}{}

	start := time.Now()
	record, err := w.loader.Load(ctx, ref)
	if err != nil {
		w.metrics.RecordRepositoryLoad("failed", time.Since(start))
		w.log.WithReference(ref).WithError(err).
			Warn("failed to load nested repository, skipping; collected features may be incomplete")
		w.warnings = append(w.warnings, Warning{
			Code:      WarnNestedRepository,
			Message:   "failed to load nested repository: " + err.Error(),
			Reference: ref,
		})
		return
	}
	w.metrics.RecordRepositoryLoad("loaded", time.Since(start))

	w.log.WithRepository(record.Name).
		WithField("location", ref).
		Debug("loaded nested repository")

	w.descend(ctx, record)
}
