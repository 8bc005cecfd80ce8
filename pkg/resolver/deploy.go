package resolver

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/provisio/provisio/pkg/descriptor"
)

// deployFile copies a config file source into the working directory,
// truncating any existing destination. The copy happens during translation;
// it is the one side effect the resolver performs itself.
func (r *Resolver) deployFile(ctx context.Context, file *descriptor.ConfigFile) error {
	source := strings.TrimSpace(file.SourceURI)

	body, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", source, err)
	}
	defer body.Close()

	dest := filepath.Join(r.workDir, file.FinalName)
	if err := r.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dest, err)
	}

	out, err := r.fs.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return out.Close()
}
