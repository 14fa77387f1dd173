// internal/matching/scorer.go
package matching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
	"caregiver-matching/pkg/registry"
)

// Heuristic weights; they sum to 1.
const (
	WeightSimilarity     = 0.35
	WeightSpecialization = 0.30
	WeightLocation       = 0.20
	WeightAvailability   = 0.10
	WeightExperience     = 0.05

	experienceCapYears = 20.0
)

var ErrModelSchema = errors.New("model feature schema mismatch")

// Strategy produces a final score or reports itself unavailable.
type Strategy interface {
	Name() models.ScoreType
	Score(fv models.FeatureVector) (float64, bool)
}

// HeuristicScorer is the weighted blend used whenever no model is available.
type HeuristicScorer struct{}

func (HeuristicScorer) Name() models.ScoreType { return models.ScoreTypeHeuristic }

func (HeuristicScorer) Score(fv models.FeatureVector) (float64, bool) {
	return WeightSimilarity*fv.Similarity +
		WeightSpecialization*fv.SpecializationScore +
		WeightLocation*fv.LocationScore +
		WeightAvailability*fv.AvailabilityScore +
		WeightExperience*math.Min(1, fv.YearsExperience/experienceCapYears), true
}

// MLScorer predicts with the currently loaded booster.
type MLScorer struct {
	mu      sync.RWMutex
	booster *ranking.Booster
	version string
	logger  logger.Logger
}

func NewMLScorer(log logger.Logger) *MLScorer {
	return &MLScorer{logger: log}
}

func (m *MLScorer) Name() models.ScoreType { return models.ScoreTypeML }

func (m *MLScorer) Score(fv models.FeatureVector) (float64, bool) {
	m.mu.RLock()
	b := m.booster
	m.mu.RUnlock()
	if b == nil {
		return 0, false
	}
	score, err := b.Predict(fv.Values())
	if err != nil {
		m.logger.Warn("model prediction failed", map[string]interface{}{"error": err.Error()})
		return 0, false
	}
	return score, true
}

// Set installs b under version; a nil booster unloads the model.
func (m *MLScorer) Set(b *ranking.Booster, version string) {
	m.mu.Lock()
	m.booster = b
	m.version = version
	m.mu.Unlock()
}

// Version is empty when no model is loaded.
func (m *MLScorer) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// ArtifactOpener reads a serialized model by path.
type ArtifactOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Scorer walks an ordered strategy chain; the first strategy that succeeds names the
// score_type. The ML model is loaded once and refreshed only through Reload.
type Scorer struct {
	ml        *MLScorer
	chain     []Strategy
	registry  registry.Store
	artifacts ArtifactOpener
	logger    logger.Logger
}

func NewScorer(reg registry.Store, artifacts ArtifactOpener, log logger.Logger) *Scorer {
	log = log.WithFields(map[string]interface{}{"component": "scorer"})
	ml := NewMLScorer(log)
	return &Scorer{
		ml:        ml,
		chain:     []Strategy{ml, HeuristicScorer{}},
		registry:  reg,
		artifacts: artifacts,
		logger:    log,
	}
}

// Score returns the first available strategy's score. The heuristic never declines.
func (s *Scorer) Score(fv models.FeatureVector) (float64, models.ScoreType) {
	for _, st := range s.chain {
		if score, ok := st.Score(fv); ok {
			return score, st.Name()
		}
	}
	score, _ := HeuristicScorer{}.Score(fv)
	return score, models.ScoreTypeHeuristic
}

// ModelVersion is the loaded model version, empty when scoring is heuristic only.
func (s *Scorer) ModelVersion() string {
	return s.ml.Version()
}

// Reload syncs the loaded model with the registry. A missing entry or ml_enabled=false
// unloads the model; a failed load keeps the previous one.
func (s *Scorer) Reload(ctx context.Context) error {
	if s.registry == nil {
		return nil
	}
	entry, err := s.registry.Get(ctx)
	if errors.Is(err, registry.ErrNotFound) {
		s.unload("no registry entry")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	if !entry.MLEnabled {
		s.unload("ml disabled in registry")
		return nil
	}
	if entry.Version != "" && entry.Version == s.ml.Version() {
		return nil
	}

	b, err := s.load(ctx, entry.ModelPath)
	if err != nil {
		return fmt.Errorf("load model %s: %w", entry.Version, err)
	}
	s.ml.Set(b, entry.Version)
	s.logger.Info("model loaded", map[string]interface{}{
		"version":   entry.Version,
		"modelPath": entry.ModelPath,
		"trees":     len(b.Trees),
	})
	return nil
}

func (s *Scorer) load(ctx context.Context, path string) (*ranking.Booster, error) {
	if s.artifacts == nil {
		return nil, errors.New("no artifact store configured")
	}
	rc, err := s.artifacts.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := ranking.Parse(rc)
	if err != nil {
		return nil, err
	}
	if b.NumFeatures() != models.FeatureCount {
		return nil, fmt.Errorf("%w: model has %d features, want %d", ErrModelSchema, b.NumFeatures(), models.FeatureCount)
	}
	return b, nil
}

func (s *Scorer) unload(reason string) {
	if s.ml.Version() == "" {
		return
	}
	s.ml.Set(nil, "")
	s.logger.Info("model unloaded", map[string]interface{}{"reason": reason})
}

// Watch reloads on every tick until ctx is done. Failures are logged and the current model kept.
func (s *Scorer) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("model reload failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
