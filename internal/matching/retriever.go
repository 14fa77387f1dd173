// internal/matching/retriever.go
package matching

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"

	"github.com/pgvector/pgvector-go"
)

const similarityQuery = `
	SELECT id, metadata, 1 - (embedding <=> $1::vector) AS similarity
	FROM caregiver_embeddings
	WHERE 1 - (embedding <=> $1::vector) > $2
	ORDER BY similarity DESC
	LIMIT $3`

// Retriever runs the cosine-similarity query against the caregiver vector table.
type Retriever struct {
	db        *sql.DB
	threshold float64
	limit     int
	logger    logger.Logger
}

func NewRetriever(db *sql.DB, threshold float64, limit int, log logger.Logger) *Retriever {
	return &Retriever{
		db:        db,
		threshold: threshold,
		limit:     limit,
		logger:    log.WithFields(map[string]interface{}{"component": "retriever"}),
	}
}

// Retrieve returns candidates with similarity strictly above the threshold, most similar
// first. Any store failure is a RetrievalError; partial results are never returned.
func (r *Retriever) Retrieve(ctx context.Context, embedding []float32) ([]models.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, similarityQuery, pgvector.NewVector(embedding), r.threshold, r.limit)
	if err != nil {
		return nil, apperrors.NewRetrievalError(err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var (
			id       string
			metadata []byte
			sim      float64
		)
		if err := rows.Scan(&id, &metadata, &sim); err != nil {
			return nil, apperrors.NewRetrievalError(fmt.Errorf("scan candidate: %w", err))
		}
		if sim <= r.threshold {
			continue
		}
		out = append(out, models.Candidate{
			CaregiverID: id,
			Similarity:  sim,
			Metadata:    metadata,
			Order:       len(out),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRetrievalError(err)
	}

	r.logger.Debug("candidates retrieved", map[string]interface{}{
		"count":     len(out),
		"threshold": r.threshold,
	})
	return out, nil
}
