package ports

import (
	"context"
	"time"

	"studiograb/internal/core/domain"
)

// Page is the remote-evaluation capability: run a script against the
// current page and decode its JSON-serializable result into out (out may
// be nil for fire-and-forget mutations). Implementations never assume
// synchronous DOM mutation visibility; callers insert settle delays
// between a mutating evaluation and the next read.
type Page interface {
	Evaluate(ctx context.Context, script string, out any) error

	// Reload reloads the page and waits for it to settle. A deliberate
	// recovery action: the live page's view of artifact state can go
	// stale without one.
	Reload(ctx context.Context) error
}

// SessionGate reports when the controlled session is signed in and the
// studio surface is usable. Resolving authentication itself happens
// elsewhere; the orchestrator only waits on the gate.
type SessionGate interface {
	WaitReady(ctx context.Context, timeout time.Duration) error
}

// DownloadWatcher observes the directory the browser saves into. Every
// check takes a fresh listing: the browser's download manager mutates the
// directory concurrently with polling.
type DownloadWatcher interface {
	// Snapshot returns the current file set, name to size.
	Snapshot(ctx context.Context) (map[string]int64, error)

	// AwaitNew waits for a file absent from baseline to appear and become
	// stable (non-zero size, unchanged across a re-measure). Returns
	// (nil, nil) when the timeout elapses first; timeout under polling is
	// an expected outcome, not an error.
	AwaitNew(ctx context.Context, baseline map[string]int64, timeout time.Duration) (*domain.DownloadedFile, error)

	// Rename gives a downloaded file its final name inside the watched
	// directory, overwriting by name, and returns the final path.
	Rename(oldName, newName string) (string, error)

	Dir() string
}

// RunStore persists run manifests and download records.
type RunStore interface {
	InitRun(ctx context.Context, runID string) error
	SaveManifest(ctx context.Context, runID string, data []byte) error
	SaveRecords(ctx context.Context, runID string, data []byte) error
	RunPath(runID string) string
}
