// internal/matching/store.go
package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"caregiver-matching/internal/common/database"
	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

var ErrSeniorNotFound = errors.New("senior not found")

// MatchStore owns the persisted MatchSet and the senior's match status.
type MatchStore struct {
	db *sql.DB
}

func NewMatchStore(db *sql.DB) *MatchStore {
	return &MatchStore{db: db}
}

// ReplaceMatches deletes the previous MatchSet, inserts matches and marks the senior ready,
// all in one transaction.
func (s *MatchStore) ReplaceMatches(ctx context.Context, seniorID string, matches []models.ScoredMatch, now time.Time) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM senior_matches WHERE senior_id = $1`, seniorID); err != nil {
			return fmt.Errorf("delete previous matches: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO senior_matches
				(senior_id, caregiver_id, rank, score, score_type, similarity, features, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range matches {
			features, err := json.Marshal(m.Features)
			if err != nil {
				return fmt.Errorf("encode features for %s: %w", m.CaregiverID, err)
			}
			if _, err := stmt.ExecContext(ctx, seniorID, m.CaregiverID, m.Rank, m.FinalScore,
				string(m.ScoreType), m.Similarity, features, now); err != nil {
				return fmt.Errorf("insert match %s: %w", m.CaregiverID, err)
			}
		}

		return updateStatus(ctx, tx, seniorID, models.MatchStatusReady, len(matches), now)
	})
	if err != nil {
		return apperrors.NewPersistenceError(seniorID, err)
	}
	return nil
}

// MarkNoMatches records an empty retrieval without touching the previous MatchSet.
func (s *MatchStore) MarkNoMatches(ctx context.Context, seniorID string, now time.Time) error {
	if err := updateStatus(ctx, s.db, seniorID, models.MatchStatusNoMatches, 0, now); err != nil {
		return apperrors.NewPersistenceError(seniorID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateStatus(ctx context.Context, db execer, seniorID string, status models.MatchStatus, count int, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE seniors
		SET match_status = $2, match_count = $3, matches_updated_at = $4, error_message = NULL
		WHERE id = $1`,
		seniorID, string(status), count, now)
	if err != nil {
		return fmt.Errorf("update senior status: %w", err)
	}
	return nil
}

// TriggerStore manages matching_queue records.
type TriggerStore struct {
	db *sql.DB
}

func NewTriggerStore(db *sql.DB) *TriggerStore {
	return &TriggerStore{db: db}
}

func (s *TriggerStore) Delete(ctx context.Context, queueID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM matching_queue WHERE id = $1`, queueID)
	return err
}

func (s *TriggerStore) MarkError(ctx context.Context, queueID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE matching_queue SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`,
		queueID, string(models.MatchStatusError), message)
	return err
}

// SeniorStore loads senior profiles through a Redis read-through cache.
type SeniorStore struct {
	db     *sql.DB
	cache  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

// NewSeniorStore accepts a nil cache.
func NewSeniorStore(db *sql.DB, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *SeniorStore {
	return &SeniorStore{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "senior-store"}),
	}
}

func seniorCacheKey(id string) string {
	return "senior:profile:" + id
}

// Get returns ErrSeniorNotFound when no row exists.
func (s *SeniorStore) Get(ctx context.Context, id string) (*models.SeniorProfile, error) {
	if s.cache != nil {
		var cached models.SeniorProfile
		err := s.cache.GetJSON(ctx, seniorCacheKey(id), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			s.logger.Warn("senior cache read failed", map[string]interface{}{"seniorId": id, "error": err.Error()})
		}
	}

	profile, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, seniorCacheKey(id), profile, s.ttl); err != nil {
			s.logger.Warn("senior cache write failed", map[string]interface{}{"seniorId": id, "error": err.Error()})
		}
	}
	return profile, nil
}

// Invalidate drops the cached profile, e.g. after the senior document changed.
func (s *SeniorStore) Invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, seniorCacheKey(id))
}

func (s *SeniorStore) load(ctx context.Context, id string) (*models.SeniorProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, location, availability, conditions, budget, embedding,
		       family_member_ids, family_emails
		FROM seniors WHERE id = $1`, id)

	var (
		p            models.SeniorProfile
		name, email  sql.NullString
		location     []byte
		availability []byte
		budget       sql.NullFloat64
		embedding    []byte
	)
	err := row.Scan(&p.ID, &name, &email, &location, &availability,
		pq.Array(&p.Conditions), &budget, &embedding,
		pq.Array(&p.FamilyMemberIDs), pq.Array(&p.FamilyEmails))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeniorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load senior %s: %w", id, err)
	}

	p.Name = name.String
	p.Email = email.String
	p.Budget = budget.Float64
	if len(location) > 0 {
		var loc models.Location
		if err := json.Unmarshal(location, &loc); err != nil {
			s.logger.Warn("ignoring malformed senior location", map[string]interface{}{"seniorId": id, "error": err.Error()})
		} else {
			p.Location = &loc
		}
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &p.Availability); err != nil {
			s.logger.Warn("ignoring malformed senior availability", map[string]interface{}{"seniorId": id, "error": err.Error()})
			p.Availability = nil
		}
	}
	if len(embedding) > 0 {
		var v pgvector.Vector
		if err := v.Scan(embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for senior %s: %w", id, err)
		}
		p.Embedding = v.Slice()
	}
	return &p, nil
}
