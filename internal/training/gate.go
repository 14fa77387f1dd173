// internal/training/gate.go
package training

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/models"
	"caregiver-matching/pkg/registry"
)

// Promoter copies a staged artifact to its production location and removes it again when the
// registry write that follows fails.
type Promoter interface {
	Promote(ctx context.Context, staged, dst string) error
	Discard(ctx context.Context, path string) error
}

// VersionedPath derives the production file for version from the configured base path:
// models/matching-model-v1.txt becomes models/matching-model-v1-<version>.txt.
func VersionedPath(base, version string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + version + ext
}

// Decision is the gate's verdict for one candidate model.
type Decision struct {
	Deployed    bool
	Improvement float64
	CurrentNDCG float64
	Entry       *registry.ModelEntry
}

// Gate promotes a candidate only when its NDCG@10 beats the active model by more than
// threshold.
type Gate struct {
	registry       registry.Store
	promoter       Promoter
	productionPath string
	threshold      float64
	now            func() time.Time
}

func NewGate(reg registry.Store, promoter Promoter, productionPath string, threshold float64) *Gate {
	return &Gate{
		registry:       reg,
		promoter:       promoter,
		productionPath: productionPath,
		threshold:      threshold,
		now:            time.Now,
	}
}

// Decide compares against the registry and, on improvement, copies the artifact to a new
// versioned production file and then points the registry at it. The active model's file is
// never overwritten, so a failed registry write leaves the registry and the disk consistent.
// Otherwise nothing is written.
func (g *Gate) Decide(ctx context.Context, staged, version string, m models.EvaluationMetrics) (Decision, error) {
	current, err := registry.ActiveNDCG(ctx, g.registry)
	if err != nil {
		return Decision{}, apperrors.NewPromotionError(err)
	}

	d := Decision{CurrentNDCG: current, Improvement: m.NDCGAt10 - current}
	if d.Improvement <= g.threshold {
		return d, nil
	}

	path := VersionedPath(g.productionPath, version)
	if err := g.promoter.Promote(ctx, staged, path); err != nil {
		return d, apperrors.NewPromotionError(err)
	}
	entry := &registry.ModelEntry{
		ModelPath:  path,
		Version:    version,
		NDCGAt10:   m.NDCGAt10,
		MSE:        m.MSE,
		MAE:        m.MAE,
		MLEnabled:  true,
		DeployedAt: g.now().UTC(),
	}
	if err := g.registry.Put(ctx, entry); err != nil {
		_ = g.promoter.Discard(ctx, path)
		return d, apperrors.NewPromotionError(err)
	}
	d.Deployed = true
	d.Entry = entry
	return d, nil
}
