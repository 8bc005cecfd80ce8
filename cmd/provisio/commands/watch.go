package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/provisio/provisio/pkg/repo"
	"github.com/provisio/provisio/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		flags    resolveFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-resolve whenever a local descriptor changes",
		Long: `Watch a local feature repository descriptor and re-run the resolution
on every change. Only file locations can be watched; remote repositories
referenced from the watched descriptor are re-fetched on each run.

Edits are debounced so a save that produces several filesystem events
triggers a single resolution.`,
		Example: `  # Watch a descriptor during development
  provisio watch -r file:./features.xml -f core -f http

  # Watch using a manifest
  provisio -c provisio.yaml watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(flags)
			if err != nil {
				return err
			}

			if strings.HasPrefix(m.Repository, "http://") || strings.HasPrefix(m.Repository, "https://") {
				return fmt.Errorf("watch requires a local descriptor, got %q", m.Repository)
			}
			path := repo.LocalPath(m.Repository)

			log, err := newLogger(m)
			if err != nil {
				return err
			}

			r := newResolver(m, log, nil, nil)
			ctx := cmd.Context()

			runOnce := func() {
				res, err := r.Resolve(ctx, m.Repository, m.Features)
				if err != nil {
					log.WithError(err).Error("resolution failed")
					return
				}
				if err := printResult(res); err != nil {
					log.WithError(err).Error("failed to print result")
				}
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory: editors replace files on save, which
			// drops a watch held on the file itself.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
			}

			log.WithField("path", path).Info("watching descriptor")
			runOnce()

			return watchLoop(ctx, watcher, path, debounce, log, runOnce)
		},
	}

	cmd.Flags().StringVarP(&flags.repository, "repository", "r", "", "local root descriptor to watch")
	cmd.Flags().StringSliceVarP(&flags.features, "feature", "f", nil, "feature to resolve (repeatable)")
	cmd.Flags().IntVar(&flags.startLevel, "start-level", 0, "default bundle start level")
	cmd.Flags().StringVar(&flags.workDir, "work-dir", "", "directory for config file deployment")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "delay before re-resolving after a change")

	return cmd
}

// watchLoop dispatches watcher events for path until ctx is cancelled,
// calling run after each debounced burst of changes.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, log *telemetry.Logger, run func()) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			log.Debug("descriptor changed, re-resolving")
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("watch error")
		}
	}
}
