package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetcher retrieves the raw bytes of a resource by location. Implementations
// own their timeout behavior; the loader propagates whatever failure the
// fetcher reports.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// HTTPFetcher fetches http and https locations.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher with a default client timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch performs a GET against the location. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid location %s: %w", location, err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", location, resp.Status)
	}

	return resp.Body, nil
}

// FileFetcher fetches file URLs and bare filesystem paths.
type FileFetcher struct{}

// Fetch opens the referenced file for reading.
func (FileFetcher) Fetch(_ context.Context, location string) (io.ReadCloser, error) {
	path := LocalPath(location)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	return file, nil
}

// LocalPath strips a file scheme prefix from a location, returning a plain
// filesystem path. Locations without a scheme are returned unchanged.
func LocalPath(location string) string {
	if strings.HasPrefix(location, "file://") {
		return strings.TrimPrefix(location, "file://")
	}
	return strings.TrimPrefix(location, "file:")
}

// SchemeFetcher routes fetches to scheme-specific fetchers. Locations
// without a scheme, or with the file scheme, go to the file fetcher.
type SchemeFetcher struct {
	HTTP Fetcher
	File Fetcher
	SFTP Fetcher
}

// NewFetcher creates the default fetcher covering http(s), sftp, file
// URLs, and bare paths.
func NewFetcher() *SchemeFetcher {
	return &SchemeFetcher{
		HTTP: NewHTTPFetcher(),
		File: FileFetcher{},
		SFTP: NewSFTPFetcher(nil),
	}
}

// Fetch dispatches by the location's URL scheme.
func (f *SchemeFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %s: %w", location, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.HTTP.Fetch(ctx, location)
	case "", "file":
		return f.File.Fetch(ctx, location)
	case "sftp":
		return f.SFTP.Fetch(ctx, location)
	default:
		return nil, fmt.Errorf("unsupported location scheme %q in %s", u.Scheme, location)
	}
}
