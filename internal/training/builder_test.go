package training

import (
	"context"
	"regexp"
	"testing"
	"time"

	"caregiver-matching/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	rated := since.Add(48 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE rating > 0 AND rated_at >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"senior_id", "caregiver_id", "rating", "features", "past_rating", "rated_at"}).
			AddRow("s-1", "cg-1", 5.0, []byte(`{"similarity":0.9,"price_score":0.76,"years_experience":8}`), 4.5, rated).
			AddRow("s-1", "cg-2", 2.0, []byte(`not-json`), 0.0, rated).
			AddRow("s-2", "cg-1", 3.0, nil, 0.0, rated))

	got, err := NewBuilder(db, logger.NewNoOpLogger()).Build(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "s-1", got[0].SeniorID)
	assert.Equal(t, 5.0, got[0].Rating)
	assert.Equal(t, 0.9, got[0].Features.Similarity)
	assert.Equal(t, 8.0, got[0].Features.YearsExperience)
	assert.Equal(t, 4.5, got[0].PastRating)
	assert.Equal(t, "s-2", got[1].SeniorID)
	assert.Zero(t, got[1].Features.Similarity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
