// Package repo loads feature repository descriptors from their locations.
// It is the leaf of the resolution stack: fetch the raw bytes through a
// Fetcher, decode them with a descriptor parser, hand the record back. It
// performs no caching; every Load re-fetches.
package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/provisio/provisio/pkg/descriptor"
)

// LoadStage identifies the phase of a Load call that failed.
type LoadStage string

const (
	// StageFetch means the location could not be retrieved.
	StageFetch LoadStage = "fetch"

	// StageParse means the retrieved content was not a well-formed descriptor.
	StageParse LoadStage = "parse"

	// StageSchema means the content parsed but is not a repository root.
	StageSchema LoadStage = "schema"
)

// LoadError reports a failed Load with the location and failing stage.
type LoadError struct {
	Location string
	Stage    LoadStage
	Err      error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load repository %s: %s failed: %v", e.Location, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader obtains and parses repository descriptors. Descriptor parsers are
// stateful and not safe for concurrent reuse, so the loader keeps them in a
// pool and checks one out per call; Load itself is safe for concurrent use.
type Loader struct {
	fetcher Fetcher
	parsers sync.Pool
}

// NewLoader creates a loader on top of the given fetcher. A nil fetcher
// gets the default scheme-dispatching fetcher.
func NewLoader(fetcher Fetcher) *Loader {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	return &Loader{
		fetcher: fetcher,
		parsers: sync.Pool{
			New: func() any { return descriptor.NewParser() },
		},
	}
}

// Load fetches and parses the repository descriptor at location. Failures
// are reported as *LoadError with the failing stage; a document whose root
// is not a repository fails at StageSchema, never silently defaults.
func (l *Loader) Load(ctx context.Context, location string) (*descriptor.Repository, error) {
	body, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, &LoadError{Location: location, Stage: StageFetch, Err: err}
	}
	defer body.Close()

	parser := l.parsers.Get().(*descriptor.Parser)
	defer l.parsers.Put(parser)

	repo, err := parser.Parse(body)
	if err != nil {
		stage := StageParse
		if errors.Is(err, descriptor.ErrNotRepository) {
			stage = StageSchema
		}
		return nil, &LoadError{Location: location, Stage: stage, Err: err}
	}

	return repo, nil
}
