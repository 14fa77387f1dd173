package training

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
	"caregiver-matching/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	gate       *Gate
	reg        *registry.FileStore
	artifacts  *ArtifactStore
	staged     string
	base       string
	production string
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	dir := t.TempDir()
	artifacts := NewArtifactStore(filepath.Join(dir, "staging"))
	staged, err := artifacts.StageModel(context.Background(), "20250601_120000", thresholdModel())
	require.NoError(t, err)

	reg := registry.NewFileStore(filepath.Join(dir, "registry.json"))
	base := filepath.Join(dir, "models", "matching-model-v1.txt")
	g := NewGate(reg, artifacts, base, 0.02)
	g.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &gateFixture{
		gate:       g,
		reg:        reg,
		artifacts:  artifacts,
		staged:     staged,
		base:       base,
		production: filepath.Join(dir, "models", "matching-model-v1-20250601_120000.txt"),
	}
}

func TestGate_PromotesOnFirstModel(t *testing.T) {
	f := newGateFixture(t)
	m := models.EvaluationMetrics{NDCGAt10: 0.81, MSE: 0.4, MAE: 0.5}

	d, err := f.gate.Decide(context.Background(), f.staged, "20250601_120000", m)
	require.NoError(t, err)
	assert.True(t, d.Deployed)
	assert.Zero(t, d.CurrentNDCG)
	assert.InDelta(t, 0.81, d.Improvement, 1e-9)

	entry, err := f.reg.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.production, entry.ModelPath)
	assert.Equal(t, "20250601_120000", entry.Version)
	assert.True(t, entry.MLEnabled)
	assert.Equal(t, 0.81, entry.NDCGAt10)

	rc, err := f.artifacts.Open(context.Background(), f.production)
	require.NoError(t, err)
	defer rc.Close()
	b, err := ranking.Parse(rc)
	require.NoError(t, err)
	assert.Len(t, b.Trees, 1)
}

func TestGate_Threshold(t *testing.T) {
	tests := []struct {
		name     string
		ndcg     float64
		deployed bool
	}{
		{"below threshold", 0.81, false},
		{"exactly threshold is not enough", 0.82, false},
		{"above threshold", 0.8201, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t)
			require.NoError(t, f.reg.Put(context.Background(), &registry.ModelEntry{
				ModelPath: f.base,
				Version:   "20250501_000000",
				NDCGAt10:  0.80,
				MLEnabled: true,
			}))

			d, err := f.gate.Decide(context.Background(), f.staged, "20250601_120000", models.EvaluationMetrics{NDCGAt10: tt.ndcg})
			require.NoError(t, err)
			assert.Equal(t, tt.deployed, d.Deployed)
			assert.Equal(t, 0.80, d.CurrentNDCG)

			entry, err := f.reg.Get(context.Background())
			require.NoError(t, err)
			if tt.deployed {
				assert.Equal(t, "20250601_120000", entry.Version)
				assert.FileExists(t, f.production)
			} else {
				assert.Equal(t, "20250501_000000", entry.Version)
				assert.NoFileExists(t, f.production)
			}
		})
	}
}

type brokenRegistry struct{}

func (brokenRegistry) Get(ctx context.Context) (*registry.ModelEntry, error) {
	return nil, errors.New("connection refused")
}

func (brokenRegistry) Put(ctx context.Context, e *registry.ModelEntry) error {
	return errors.New("connection refused")
}

func TestGate_RegistryUnreadable(t *testing.T) {
	f := newGateFixture(t)
	g := NewGate(brokenRegistry{}, f.artifacts, f.base, 0.02)

	_, err := g.Decide(context.Background(), f.staged, "v", models.EvaluationMetrics{NDCGAt10: 0.9})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePromotionFailed))
	assert.NoFileExists(t, f.production)
}

func TestGate_MissingStagedArtifact(t *testing.T) {
	f := newGateFixture(t)
	require.NoError(t, os.Remove(f.staged))

	_, err := f.gate.Decide(context.Background(), f.staged, "v", models.EvaluationMetrics{NDCGAt10: 0.9})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePromotionFailed))

	_, err = f.reg.Get(context.Background())
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestVersionedPath(t *testing.T) {
	assert.Equal(t, "models/matching-model-v1-20250601_120000.txt", VersionedPath("models/matching-model-v1.txt", "20250601_120000"))
	assert.Equal(t, "models/current-v2", VersionedPath("models/current", "v2"))
}

// rejectingRegistry reads like an empty registry and fails every write.
type rejectingRegistry struct{}

func (rejectingRegistry) Get(ctx context.Context) (*registry.ModelEntry, error) {
	return nil, registry.ErrNotFound
}

func (rejectingRegistry) Put(ctx context.Context, e *registry.ModelEntry) error {
	return errors.New("deadlock detected")
}

func TestGate_RegistryWriteFailureKeepsDiskConsistent(t *testing.T) {
	f := newGateFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.base), 0o755))
	require.NoError(t, os.WriteFile(f.base, []byte("active model"), 0o644))
	g := NewGate(rejectingRegistry{}, f.artifacts, f.base, 0.02)

	d, err := g.Decide(context.Background(), f.staged, "20250601_120000", models.EvaluationMetrics{NDCGAt10: 0.9})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePromotionFailed))
	assert.False(t, d.Deployed)

	assert.NoFileExists(t, f.production)
	active, err := os.ReadFile(f.base)
	require.NoError(t, err)
	assert.Equal(t, "active model", string(active))
}
