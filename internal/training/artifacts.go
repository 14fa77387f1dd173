// internal/training/artifacts.go
package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"

	"github.com/google/uuid"
)

// ArtifactStore keeps staged models, exported datasets and the production copy on a filesystem.
type ArtifactStore struct {
	stagingDir string
}

func NewArtifactStore(stagingDir string) *ArtifactStore {
	return &ArtifactStore{stagingDir: stagingDir}
}

// StageModel writes b under the staging directory and returns its path. The production path
// is never written here.
func (s *ArtifactStore) StageModel(ctx context.Context, version string, b *ranking.Booster) (string, error) {
	name := fmt.Sprintf("matching-model-%s-%s.txt", version, uuid.NewString()[:8])
	return s.write(filepath.Join(s.stagingDir, name), ranking.Marshal(b))
}

// StageDataset exports samples as CSV next to the staged models.
func (s *ArtifactStore) StageDataset(ctx context.Context, name, version string, samples []models.TrainingSample) (string, error) {
	path := filepath.Join(s.stagingDir, fmt.Sprintf("%s_data_%s.csv", name, version))
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, samples); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func (s *ArtifactStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Promote copies the staged artifact to dst, replacing it atomically.
func (s *ArtifactStore) Promote(ctx context.Context, staged, dst string) error {
	data, err := os.ReadFile(staged)
	if err != nil {
		return fmt.Errorf("read staged model: %w", err)
	}
	_, err = s.write(dst, data)
	return err
}

// Discard removes a promoted file. A missing file is not an error.
func (s *ArtifactStore) Discard(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard %s: %w", path, err)
	}
	return nil
}

func (s *ArtifactStore) write(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
