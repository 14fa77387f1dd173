package training

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"caregiver-matching/internal/common/config"
	"caregiver-matching/internal/common/database"
	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/observability"
	"caregiver-matching/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() Report {
	return Report{
		ModelVersion: "20250601_120000",
		Metrics:      models.EvaluationMetrics{NDCGAt10: 0.83, MSE: 0.9, MAE: 0.7},
		Improvement:  0.03,
		CurrentNDCG:  0.80,
		Deployed:     true,
		SampleCount:  120,
		Trainer:      TrainerLocal,
		RecordedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newElasticsearch(t *testing.T, status int, docs chan<- map[string]interface{}) *database.ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/matching-model-metrics/_doc") {
			var doc map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&doc)
			docs <- doc
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created","_id":"1"}`))
	}))
	t.Cleanup(srv.Close)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func TestElasticsearchSink_IndexesReport(t *testing.T) {
	docs := make(chan map[string]interface{}, 1)
	sink := NewElasticsearchSink(newElasticsearch(t, http.StatusCreated, docs), "matching-model-metrics")

	require.NoError(t, sink.Record(context.Background(), testReport()))

	doc := <-docs
	assert.Equal(t, "20250601_120000", doc["model_version"])
	assert.Equal(t, true, doc["model_deployed"])
	assert.Equal(t, 0.83, doc["metrics"].(map[string]interface{})["ndcg@10"])
}

func TestElasticsearchSink_ErrorIsTelemetry(t *testing.T) {
	docs := make(chan map[string]interface{}, 1)
	sink := NewElasticsearchSink(newElasticsearch(t, http.StatusInternalServerError, docs), "matching-model-metrics")

	err := sink.Record(context.Background(), testReport())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTelemetryFailed))
}

type recordingSink struct {
	reports []Report
	err     error
}

func (s *recordingSink) Record(ctx context.Context, r Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

func TestMultiSink_RecordsEverywhere(t *testing.T) {
	failing := &recordingSink{err: errors.New("index closed")}
	ok := &recordingSink{}
	multi := MultiSink{NewOTelSink(observability.NewNoop()), failing, ok}

	err := multi.Record(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index closed")
	assert.Len(t, failing.reports, 1)
	assert.Len(t, ok.reports, 1)
}
