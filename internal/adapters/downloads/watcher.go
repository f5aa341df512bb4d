// Package downloads confirms browser downloads by watching the
// download directory. The browser gives no in-page completion signal,
// so arrival on disk is the only proof a download finished.
package downloads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"studiograb/internal/core/domain"
)

// partialExtensions are in-flight browser artifacts, never final files.
var partialExtensions = map[string]bool{
	".crdownload": true,
	".part":       true,
	".partial":    true,
	".tmp":        true,
	".download":   true,
}

// Watcher implements ports.DownloadWatcher over a local directory.
type Watcher struct {
	dir    string
	poll   time.Duration
	settle time.Duration
	log    *zap.Logger
}

func NewWatcher(dir string, poll, settle time.Duration, log *zap.Logger) *Watcher {
	if poll <= 0 {
		poll = time.Second
	}
	if settle <= 0 {
		settle = 1500 * time.Millisecond
	}
	return &Watcher{dir: dir, poll: poll, settle: settle, log: log.Named("downloads")}
}

func (w *Watcher) Dir() string { return w.dir }

// Snapshot lists the directory's current files by name and size.
func (w *Watcher) Snapshot(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	listing := make(map[string]int64, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// The entry vanished between the listing and the stat.
			continue
		}
		listing[e.Name()] = info.Size()
	}
	return listing, nil
}

// AwaitNew waits for a file that was not in baseline to appear and
// stabilize. Every check re-lists the directory from disk; nothing is
// cached between polls. Returns (nil, nil) when the timeout passes
// without a confirmed file.
func (w *Watcher) AwaitNew(ctx context.Context, baseline map[string]int64, timeout time.Duration) (*domain.DownloadedFile, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		listing, err := w.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		for name, size := range listing {
			if _, seen := baseline[name]; seen {
				continue
			}
			if !candidateName(name) {
				continue
			}
			confirmed, finalSize, err := w.confirm(ctx, name, size)
			if err != nil {
				return nil, err
			}
			if confirmed {
				w.log.Info("download confirmed",
					zap.String("name", name),
					zap.Int64("size", finalSize))
				return &domain.DownloadedFile{
					Name: name,
					Path: filepath.Join(w.dir, name),
					Size: finalSize,
				}, nil
			}
			w.log.Debug("candidate still settling", zap.String("name", name))
		}
		if time.Now().After(deadline) {
			w.log.Warn("no download confirmed within budget", zap.Duration("timeout", timeout))
			return nil, nil
		}
		if err := wait(ctx, w.poll); err != nil {
			return nil, err
		}
	}
}

// confirm re-measures the candidate after a settle delay. A file counts
// as complete only when its size held steady and is non-zero.
func (w *Watcher) confirm(ctx context.Context, name string, firstSize int64) (bool, int64, error) {
	if err := wait(ctx, w.settle); err != nil {
		return false, 0, err
	}
	info, err := os.Stat(filepath.Join(w.dir, name))
	if err != nil {
		// Renamed or removed mid-flight; not this one.
		return false, 0, nil
	}
	size := info.Size()
	return size == firstSize && size > 0, size, nil
}

// Rename renames a downloaded file in place, replacing any existing
// file with the target name. Returns the new absolute path.
func (w *Watcher) Rename(oldName, newName string) (string, error) {
	target := filepath.Join(w.dir, newName)
	if err := os.Rename(filepath.Join(w.dir, oldName), target); err != nil {
		return "", err
	}
	return target, nil
}

func candidateName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !partialExtensions[strings.ToLower(filepath.Ext(name))]
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
