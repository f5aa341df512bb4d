package localstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage implements ports.RunStore on the local filesystem. Each
// batch run gets its own directory under <baseDir>/runs/<runID>/.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

// InitRun creates the run directory.
func (s *LocalStorage) InitRun(ctx context.Context, runID string) error {
	path := s.RunPath(runID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create run directory %s: %w", path, err)
	}
	return nil
}

// SaveManifest saves the requests triggered for the run.
func (s *LocalStorage) SaveManifest(ctx context.Context, runID string, data []byte) error {
	path := filepath.Join(s.RunPath(runID), "manifest.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save manifest.json: %w", err)
	}
	return nil
}

// SaveRecords saves the download records produced by the run.
func (s *LocalStorage) SaveRecords(ctx context.Context, runID string, data []byte) error {
	path := filepath.Join(s.RunPath(runID), "records.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save records.json: %w", err)
	}
	return nil
}

// RunPath returns the path for a run directory.
func (s *LocalStorage) RunPath(runID string) string {
	return filepath.Join(s.BaseDir, "runs", runID)
}
