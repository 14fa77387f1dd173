package matching

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func rankedMatches() []models.ScoredMatch {
	return Rank([]models.ScoredMatch{
		{CaregiverID: "cg-1", FinalScore: 0.9, ScoreType: models.ScoreTypeML, Similarity: 0.8},
		{CaregiverID: "cg-2", FinalScore: 0.7, ScoreType: models.ScoreTypeML, Similarity: 0.85},
	}, 10)
}

func TestMatchStore_ReplaceMatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM senior_matches WHERE senior_id = $1")).
		WithArgs("senior-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare("INSERT INTO senior_matches")
	prep.ExpectExec().
		WithArgs("senior-1", "cg-1", 1, 0.9, "ml", 0.8, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("senior-1", "cg-2", 2, 0.7, "ml", 0.85, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE seniors").
		WithArgs("senior-1", "ready", 2, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewMatchStore(db).ReplaceMatches(context.Background(), "senior-1", rankedMatches(), fixedNow)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchStore_ReplaceMatchesRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM senior_matches").WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare("INSERT INTO senior_matches")
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewMatchStore(db).ReplaceMatches(context.Background(), "senior-1", rankedMatches(), fixedNow)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchStore_MarkNoMatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE seniors").
		WithArgs("senior-1", "no_matches", 0, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewMatchStore(db).MarkNoMatches(context.Background(), "senior-1", fixedNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE matching_queue SET status = $2")).
		WithArgs("q-1", "error", "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM matching_queue WHERE id = $1")).
		WithArgs("q-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewTriggerStore(db)
	require.NoError(t, s.MarkError(context.Background(), "q-1", "boom"))
	require.NoError(t, s.Delete(context.Background(), "q-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func seniorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "location", "availability", "conditions", "budget", "embedding",
		"family_member_ids", "family_emails",
	}).AddRow(
		"senior-1", "Ada", "ada@example.com",
		[]byte(`{"lat":40.7,"lng":-74}`),
		[]byte(`{"monday":{"morning":{"available":true,"start":"08:00","end":"12:00"}}}`),
		"{dementia,diabetes}", 25.0, "[1,0,0.5]",
		"{fam-1}", "{family@example.com}",
	)
}

func TestSeniorStore_LoadsAndCaches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mr, cache := newTestRedis(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM seniors WHERE id = $1")).
		WithArgs("senior-1").
		WillReturnRows(seniorRows())

	store := NewSeniorStore(db, cache, time.Minute, logger.NewNoOpLogger())
	p, err := store.Get(context.Background(), "senior-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, []string{"dementia", "diabetes"}, p.Conditions)
	assert.Equal(t, 25.0, p.Budget)
	assert.Equal(t, []float32{1, 0, 0.5}, p.Embedding)
	assert.Equal(t, &models.Location{Lat: 40.7, Lng: -74}, p.Location)
	assert.True(t, p.Availability.Slot("monday", "morning").Available)
	assert.Equal(t, []string{"fam-1"}, p.FamilyMemberIDs)
	assert.True(t, mr.Exists(seniorCacheKey("senior-1")))

	// Second read is served from Redis; no further query is expected.
	again, err := store.Get(context.Background(), "senior-1")
	require.NoError(t, err)
	assert.Equal(t, p, again)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, store.Invalidate(context.Background(), "senior-1"))
	assert.False(t, mr.Exists(seniorCacheKey("senior-1")))
}

func TestSeniorStore_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM seniors").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewSeniorStore(db, nil, 0, logger.NewNoOpLogger()).Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSeniorNotFound)
}
