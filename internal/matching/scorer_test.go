package matching

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
	"caregiver-matching/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRegistry struct {
	entry *registry.ModelEntry
	err   error
}

func (m *memRegistry) Get(ctx context.Context) (*registry.ModelEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.entry == nil {
		return nil, registry.ErrNotFound
	}
	e := *m.entry
	return &e, nil
}

func (m *memRegistry) Put(ctx context.Context, e *registry.ModelEntry) error {
	m.entry = e
	return nil
}

type memArtifacts map[string][]byte

func (m memArtifacts) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	data, ok := m[path]
	if !ok {
		return nil, errors.New("no such artifact")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// similarityModel scores 1 above similarity 0.5 and -1 below.
func similarityModel(names []string) []byte {
	return ranking.Marshal(&ranking.Booster{
		FeatureNames: names,
		Objective:    "lambdarank",
		Trees: []*ranking.Tree{{
			SplitFeature: []int{0},
			Threshold:    []float64{0.5},
			Left:         []int{^0},
			Right:        []int{^1},
			LeafValue:    []float64{-1, 1},
			Shrinkage:    1,
		}},
	})
}

func TestHeuristicScorer(t *testing.T) {
	sum := WeightSimilarity + WeightSpecialization + WeightLocation + WeightAvailability + WeightExperience
	assert.InDelta(t, 1.0, sum, 1e-12)

	perfect := models.FeatureVector{
		Similarity: 1, LocationScore: 1, AvailabilityScore: 1, SpecializationScore: 1,
		PriceScore: 1, YearsExperience: 35, CertificationCount: 4,
	}
	score, ok := HeuristicScorer{}.Score(perfect)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-12)

	score, _ = HeuristicScorer{}.Score(models.FeatureVector{Similarity: 0.8, YearsExperience: 10})
	assert.InDelta(t, 0.35*0.8+0.05*0.5, score, 1e-12)
}

func TestScorer_FallsBackToHeuristicWithoutModel(t *testing.T) {
	s := NewScorer(&memRegistry{}, memArtifacts{}, logger.NewNoOpLogger())
	require.NoError(t, s.Reload(context.Background()))

	_, scoreType := s.Score(models.FeatureVector{Similarity: 0.9})
	assert.Equal(t, models.ScoreTypeHeuristic, scoreType)
	assert.Empty(t, s.ModelVersion())
}

func TestScorer_ReloadLoadsAndUnloads(t *testing.T) {
	ctx := context.Background()
	reg := &memRegistry{entry: &registry.ModelEntry{
		ModelPath: "models/prod.txt", Version: "20250101_000000", MLEnabled: true,
	}}
	arts := memArtifacts{"models/prod.txt": similarityModel(models.FeatureNames)}
	s := NewScorer(reg, arts, logger.NewNoOpLogger())

	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, "20250101_000000", s.ModelVersion())

	score, scoreType := s.Score(models.FeatureVector{Similarity: 0.9})
	assert.Equal(t, models.ScoreTypeML, scoreType)
	assert.Equal(t, 1.0, score)

	reg.entry.MLEnabled = false
	require.NoError(t, s.Reload(ctx))
	_, scoreType = s.Score(models.FeatureVector{Similarity: 0.9})
	assert.Equal(t, models.ScoreTypeHeuristic, scoreType)
}

func TestScorer_ReloadFailureKeepsCurrentModel(t *testing.T) {
	ctx := context.Background()
	reg := &memRegistry{entry: &registry.ModelEntry{ModelPath: "a.txt", Version: "v1", MLEnabled: true}}
	arts := memArtifacts{"a.txt": similarityModel(models.FeatureNames)}
	s := NewScorer(reg, arts, logger.NewNoOpLogger())
	require.NoError(t, s.Reload(ctx))

	reg.entry = &registry.ModelEntry{ModelPath: "missing.txt", Version: "v2", MLEnabled: true}
	assert.Error(t, s.Reload(ctx))
	assert.Equal(t, "v1", s.ModelVersion())

	reg.err = errors.New("registry down")
	assert.Error(t, s.Reload(ctx))
	assert.Equal(t, "v1", s.ModelVersion())
}

func TestScorer_RejectsWrongFeatureSchema(t *testing.T) {
	names := append(append([]string{}, models.FeatureNames...), "past_rating")
	reg := &memRegistry{entry: &registry.ModelEntry{ModelPath: "wide.txt", Version: "v8", MLEnabled: true}}
	s := NewScorer(reg, memArtifacts{"wide.txt": similarityModel(names)}, logger.NewNoOpLogger())

	err := s.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelSchema))

	_, scoreType := s.Score(models.FeatureVector{Similarity: 0.9})
	assert.Equal(t, models.ScoreTypeHeuristic, scoreType)
}
