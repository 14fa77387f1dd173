// pkg/registry/schema.go
package registry

import (
	"context"
	"errors"
	"time"
)

// DefaultName keys the production matching model.
const DefaultName = "matching_model"

var ErrNotFound = errors.New("registry entry not found")

// ModelEntry is the single source of truth for the production model.
type ModelEntry struct {
	ModelPath  string    `json:"model_path"`
	Version    string    `json:"version"`
	NDCGAt10   float64   `json:"ndcg@10"`
	MSE        float64   `json:"mse"`
	MAE        float64   `json:"mae"`
	MLEnabled  bool      `json:"ml_enabled"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Store reads and overwrites the registry entry. Get returns ErrNotFound when nothing has
// been promoted yet.
type Store interface {
	Get(ctx context.Context) (*ModelEntry, error)
	Put(ctx context.Context, entry *ModelEntry) error
}

// ActiveNDCG returns the promoted model's NDCG@10, 0 when no entry exists.
func ActiveNDCG(ctx context.Context, s Store) (float64, error) {
	entry, err := s.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.NDCGAt10, nil
}

// SetMLEnabled flips ml_enabled on the current entry and leaves everything else untouched.
func SetMLEnabled(ctx context.Context, s Store, enabled bool) (*ModelEntry, error) {
	entry, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	entry.MLEnabled = enabled
	if err := s.Put(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
