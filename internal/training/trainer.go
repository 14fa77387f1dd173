// internal/training/trainer.go
package training

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	httpclient "caregiver-matching/internal/common/http"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
)

const (
	TrainerManaged = "managed"
	TrainerLocal   = "local"
)

// Trainer fits a booster on the training partition, using validation for early stopping.
type Trainer interface {
	Name() string
	Train(ctx context.Context, train, valid []models.TrainingSample) (*ranking.Booster, error)
}

// LocalTrainer runs LambdaRank in process.
type LocalTrainer struct {
	params ranking.Params
	logger logger.Logger
}

func NewLocalTrainer(params ranking.Params, log logger.Logger) *LocalTrainer {
	return &LocalTrainer{params: params, logger: log.WithFields(map[string]interface{}{"trainer": TrainerLocal})}
}

func (t *LocalTrainer) Name() string { return TrainerLocal }

func (t *LocalTrainer) Train(ctx context.Context, train, valid []models.TrainingSample) (*ranking.Booster, error) {
	b, res, err := ranking.Train(ctx, models.FeatureNames, ToDataset(train), ToDataset(valid), t.params)
	if err != nil {
		return nil, err
	}
	t.logger.Info("local training finished", map[string]interface{}{
		"rounds":        res.Rounds,
		"bestIteration": res.BestIteration,
		"bestNdcg":      res.BestScore,
		"earlyStopped":  res.EarlyStopped,
		"trees":         len(b.Trees),
	})
	return b, nil
}

type managedJobRequest struct {
	Name         string                 `json:"name"`
	Objective    string                 `json:"objective"`
	FeatureNames []string               `json:"feature_names"`
	GroupColumn  string                 `json:"group_column"`
	LabelColumn  string                 `json:"label_column"`
	Params       map[string]interface{} `json:"params"`
	TrainCSV     string                 `json:"train_csv"`
	ValidCSV     string                 `json:"valid_csv"`
}

type managedJobStatus struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	ArtifactURL string `json:"artifact_url,omitempty"`
}

// ManagedTrainer submits the datasets to a remote training service, polls until the job
// finishes and downloads the resulting model.
type ManagedTrainer struct {
	client   *httpclient.Client
	baseURL  string
	apiKey   string
	params   ranking.Params
	poll     time.Duration
	deadline time.Duration
	logger   logger.Logger
}

func NewManagedTrainer(baseURL, apiKey string, params ranking.Params, poll, deadline time.Duration, log logger.Logger) *ManagedTrainer {
	if poll <= 0 {
		poll = 15 * time.Second
	}
	return &ManagedTrainer{
		client:   httpclient.NewClient(30 * time.Second),
		baseURL:  baseURL,
		apiKey:   apiKey,
		params:   params,
		poll:     poll,
		deadline: deadline,
		logger:   log.WithFields(map[string]interface{}{"trainer": TrainerManaged}),
	}
}

func (t *ManagedTrainer) Name() string { return TrainerManaged }

func (t *ManagedTrainer) headers() map[string]string {
	if t.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + t.apiKey}
}

func (t *ManagedTrainer) Train(ctx context.Context, train, valid []models.TrainingSample) (*ranking.Booster, error) {
	if t.baseURL == "" {
		return nil, apperrors.NewTrainingServiceError(fmt.Errorf("training service not configured"))
	}
	if t.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.deadline)
		defer cancel()
	}

	var trainCSV, validCSV bytes.Buffer
	if err := WriteCSV(&trainCSV, train); err != nil {
		return nil, apperrors.NewTrainingServiceError(err)
	}
	if err := WriteCSV(&validCSV, valid); err != nil {
		return nil, apperrors.NewTrainingServiceError(err)
	}

	req := managedJobRequest{
		Name:         "lambdarank-training-" + models.NewVersion(time.Now()),
		Objective:    "lambdarank",
		FeatureNames: models.FeatureNames,
		GroupColumn:  "senior_id",
		LabelColumn:  "rating",
		Params: map[string]interface{}{
			"num_iterations":        t.params.NumRounds,
			"learning_rate":         t.params.LearningRate,
			"num_leaves":            t.params.MaxLeaves,
			"min_data_in_leaf":      t.params.MinDataInLeaf,
			"early_stopping_rounds": t.params.EarlyStoppingRounds,
			"eval_at":               []int{t.params.EvalAt},
		},
		TrainCSV: trainCSV.String(),
		ValidCSV: validCSV.String(),
	}

	var job managedJobStatus
	if err := t.client.DoJSON(ctx, http.MethodPost, t.baseURL+"/jobs", t.headers(), req, &job); err != nil {
		return nil, apperrors.NewTrainingServiceError(fmt.Errorf("submit job: %w", err))
	}
	t.logger.Info("training job submitted", map[string]interface{}{"jobId": job.ID})

	status, err := t.wait(ctx, job.ID)
	if err != nil {
		return nil, apperrors.NewTrainingServiceError(err)
	}

	data, err := t.client.GetBytes(ctx, status.ArtifactURL, t.headers())
	if err != nil {
		return nil, apperrors.NewTrainingServiceError(fmt.Errorf("download artifact: %w", err))
	}
	b, err := ranking.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewTrainingServiceError(fmt.Errorf("parse artifact: %w", err))
	}
	if b.NumFeatures() != models.FeatureCount {
		return nil, apperrors.NewTrainingServiceError(fmt.Errorf("artifact has %d features, want %d", b.NumFeatures(), models.FeatureCount))
	}
	return b, nil
}

func (t *ManagedTrainer) wait(ctx context.Context, jobID string) (*managedJobStatus, error) {
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		var st managedJobStatus
		if err := t.client.DoJSON(ctx, http.MethodGet, t.baseURL+"/jobs/"+jobID, t.headers(), nil, &st); err != nil {
			return nil, fmt.Errorf("poll job %s: %w", jobID, err)
		}
		switch st.State {
		case "SUCCEEDED":
			if st.ArtifactURL == "" {
				return nil, fmt.Errorf("job %s succeeded without an artifact", jobID)
			}
			return &st, nil
		case "FAILED", "CANCELLED":
			return nil, fmt.Errorf("job %s %s: %s", jobID, st.State, st.Error)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// FallbackTrainer tries primary and falls back to secondary on any error.
type FallbackTrainer struct {
	primary   Trainer
	secondary Trainer
	logger    logger.Logger
}

// NewFallbackTrainer accepts a nil primary; secondary is then used directly.
func NewFallbackTrainer(primary, secondary Trainer, log logger.Logger) *FallbackTrainer {
	return &FallbackTrainer{primary: primary, secondary: secondary, logger: log}
}

// Train returns the booster and the name of the trainer that produced it.
func (f *FallbackTrainer) Train(ctx context.Context, train, valid []models.TrainingSample) (*ranking.Booster, string, error) {
	if f.primary != nil {
		b, err := f.primary.Train(ctx, train, valid)
		if err == nil {
			return b, f.primary.Name(), nil
		}
		f.logger.Warn("primary trainer failed, falling back", map[string]interface{}{
			"trainer":  f.primary.Name(),
			"fallback": f.secondary.Name(),
			"error":    err.Error(),
		})
	}
	b, err := f.secondary.Train(ctx, train, valid)
	if err != nil {
		return nil, "", apperrors.NewTrainingFailedError(err)
	}
	return b, f.secondary.Name(), nil
}
