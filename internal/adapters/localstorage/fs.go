package localstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements ports.RunStore on the local filesystem.
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

// SaveInput saves the run input record.
func (s *LocalStorage) SaveInput(ctx context.Context, runID string, data []byte) error {
	path := filepath.Join(s.RunPath(runID), "input.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save input.json: %w", err)
	}
	return nil
}

// SaveArtifact streams the downloaded artifact to a temporary file and
// renames it into place, so a partially written file never appears under the
// final name.
func (s *LocalStorage) SaveArtifact(ctx context.Context, runID string, reader io.Reader, filename string) (string, error) {
	path := filepath.Join(s.RunPath(runID), filename)
	tmp := path + ".part"

	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file %s: %w", tmp, err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close artifact file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize artifact file: %w", err)
	}
	return path, nil
}

// RunPath returns the path for a run directory.
func (s *LocalStorage) RunPath(runID string) string {
	return filepath.Join(s.BaseDir, "runs", runID)
}
