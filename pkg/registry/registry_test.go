package registry

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *ModelEntry {
	return &ModelEntry{
		ModelPath:  "models/matching-model-v1.txt",
		Version:    "20250301_120000",
		NDCGAt10:   0.81,
		MSE:        0.4,
		MAE:        0.5,
		MLEnabled:  true,
		DeployedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "registry.json"))

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	ndcg, err := ActiveNDCG(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, ndcg)

	require.NoError(t, store.Put(ctx, sampleEntry()))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleEntry(), got)

	updated, err := SetMLEnabled(ctx, store, false)
	require.NoError(t, err)
	assert.False(t, updated.MLEnabled)

	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, got.MLEnabled)
	assert.Equal(t, "20250301_120000", got.Version)
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := sampleEntry()
	mock.ExpectQuery(regexp.QuoteMeta("FROM model_registry WHERE name = $1")).
		WithArgs(DefaultName).
		WillReturnRows(sqlmock.NewRows([]string{"model_path", "version", "ndcg_at_10", "mse", "mae", "ml_enabled", "deployed_at"}).
			AddRow(e.ModelPath, e.Version, e.NDCGAt10, e.MSE, e.MAE, e.MLEnabled, e.DeployedAt))

	got, err := NewPostgresStore(db, "").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM model_registry").
		WillReturnRows(sqlmock.NewRows([]string{"model_path"}))

	_, err = NewPostgresStore(db, "").Get(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Put(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := sampleEntry()
	mock.ExpectExec("INSERT INTO model_registry").
		WithArgs("shadow", e.ModelPath, e.Version, e.NDCGAt10, e.MSE, e.MAE, e.MLEnabled, e.DeployedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresStore(db, "shadow").Put(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}
