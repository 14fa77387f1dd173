package training

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainingService struct {
	polls    int32
	finalErr string
	artifact []byte
	got      managedJobRequest
}

func (s *trainingService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&s.got))
		base = "http://" + r.Host
		_ = json.NewEncoder(w).Encode(managedJobStatus{ID: "job-1", State: "PENDING"})
	})
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		st := managedJobStatus{ID: "job-1", State: "RUNNING"}
		if atomic.AddInt32(&s.polls, 1) >= 2 {
			if s.finalErr != "" {
				st.State = "FAILED"
				st.Error = s.finalErr
			} else {
				st.State = "SUCCEEDED"
				st.ArtifactURL = base + "/artifacts/job-1"
			}
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("/artifacts/job-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(s.artifact)
	})
	return mux
}

func TestManagedTrainer_SubmitPollDownload(t *testing.T) {
	svc := &trainingService{artifact: ranking.Marshal(thresholdModel())}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	tr := NewManagedTrainer(srv.URL, "secret", smallParams(), time.Millisecond, time.Minute, logger.NewNoOpLogger())
	samples := syntheticSamples(2, 3)
	b, err := tr.Train(context.Background(), samples[:3], samples[3:])
	require.NoError(t, err)

	assert.Equal(t, models.FeatureNames, b.FeatureNames)
	assert.Len(t, b.Trees, 1)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&svc.polls), int32(2))
	assert.Equal(t, "lambdarank", svc.got.Objective)
	assert.Equal(t, "senior_id", svc.got.GroupColumn)
	assert.Contains(t, svc.got.TrainCSV, "senior-00")
	assert.Contains(t, svc.got.ValidCSV, "senior-01")
}

func TestManagedTrainer_JobFailed(t *testing.T) {
	svc := &trainingService{finalErr: "out of memory"}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	tr := NewManagedTrainer(srv.URL, "secret", smallParams(), time.Millisecond, time.Minute, logger.NewNoOpLogger())
	_, err := tr.Train(context.Background(), syntheticSamples(1, 3), nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTrainingServiceFailed))
	assert.Contains(t, err.Error(), "out of memory")
}

func TestManagedTrainer_NotConfigured(t *testing.T) {
	tr := NewManagedTrainer("", "", smallParams(), 0, 0, logger.NewNoOpLogger())
	_, err := tr.Train(context.Background(), nil, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTrainingServiceFailed))
}

func TestLocalTrainer_LearnsSimilarityOrder(t *testing.T) {
	samples := syntheticSamples(10, 6)
	train, valid := Split(samples, 0.8)

	b, err := NewLocalTrainer(smallParams(), logger.NewNoOpLogger()).Train(context.Background(), train, valid)
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	assert.Equal(t, models.FeatureCount, b.NumFeatures())

	m, err := Evaluate(b, valid, 10)
	require.NoError(t, err)
	assert.Greater(t, m.NDCGAt10, 0.5)
}

type stubTrainer struct {
	name  string
	b     *ranking.Booster
	err   error
	calls int
}

func (s *stubTrainer) Name() string { return s.name }

func (s *stubTrainer) Train(ctx context.Context, train, valid []models.TrainingSample) (*ranking.Booster, error) {
	s.calls++
	return s.b, s.err
}

func TestFallbackTrainer(t *testing.T) {
	model := thresholdModel()

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubTrainer{name: TrainerManaged, b: model}
		secondary := &stubTrainer{name: TrainerLocal}
		b, name, err := NewFallbackTrainer(primary, secondary, logger.NewNoOpLogger()).Train(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Same(t, model, b)
		assert.Equal(t, TrainerManaged, name)
		assert.Zero(t, secondary.calls)
	})

	t.Run("falls back on primary failure", func(t *testing.T) {
		primary := &stubTrainer{name: TrainerManaged, err: errors.New("quota exceeded")}
		secondary := &stubTrainer{name: TrainerLocal, b: model}
		b, name, err := NewFallbackTrainer(primary, secondary, logger.NewNoOpLogger()).Train(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Same(t, model, b)
		assert.Equal(t, TrainerLocal, name)
	})

	t.Run("nil primary", func(t *testing.T) {
		secondary := &stubTrainer{name: TrainerLocal, b: model}
		_, name, err := NewFallbackTrainer(nil, secondary, logger.NewNoOpLogger()).Train(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, TrainerLocal, name)
	})

	t.Run("both fail", func(t *testing.T) {
		primary := &stubTrainer{name: TrainerManaged, err: errors.New("down")}
		secondary := &stubTrainer{name: TrainerLocal, err: errors.New("empty dataset")}
		_, _, err := NewFallbackTrainer(primary, secondary, logger.NewNoOpLogger()).Train(context.Background(), nil, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTrainingFailed))
	})
}
