// Package training builds the ranking model offline: it collects rated matches, trains a
// LambdaRank booster, evaluates it and decides whether it replaces the production model.
package training

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"
)

const ratedMatchesQuery = `
	SELECT senior_id, caregiver_id, rating, features, COALESCE(past_rating, 0), rated_at
	FROM senior_matches
	WHERE rating > 0 AND rated_at >= $1
	ORDER BY senior_id, rated_at, caregiver_id`

// Builder collects training samples from rated matches. Rows come back grouped by senior.
type Builder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewBuilder(db *sql.DB, log logger.Logger) *Builder {
	return &Builder{db: db, logger: log.WithFields(map[string]interface{}{"component": "training-set-builder"})}
}

// Build returns every rated match with rated_at >= since, using the features stored at match time.
func (b *Builder) Build(ctx context.Context, since time.Time) ([]models.TrainingSample, error) {
	rows, err := b.db.QueryContext(ctx, ratedMatchesQuery, since)
	if err != nil {
		return nil, fmt.Errorf("query rated matches: %w", err)
	}
	defer rows.Close()

	var out []models.TrainingSample
	for rows.Next() {
		var (
			s        models.TrainingSample
			features []byte
		)
		if err := rows.Scan(&s.SeniorID, &s.CaregiverID, &s.Rating, &features, &s.PastRating, &s.RatedAt); err != nil {
			return nil, fmt.Errorf("scan rated match: %w", err)
		}
		if len(features) > 0 {
			if err := json.Unmarshal(features, &s.Features); err != nil {
				b.logger.Warn("skipping match with unreadable features", map[string]interface{}{
					"seniorId":    s.SeniorID,
					"caregiverId": s.CaregiverID,
					"error":       err.Error(),
				})
				continue
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rated matches: %w", err)
	}

	b.logger.Info("training samples collected", map[string]interface{}{
		"count": len(out),
		"since": since.Format(time.RFC3339),
	})
	return out, nil
}
