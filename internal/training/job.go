// internal/training/job.go
package training

import (
	"context"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/common/metrics"
	"caregiver-matching/internal/common/observability"
	"caregiver-matching/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	StatusSuccess          = "success"
	StatusInsufficientData = "insufficient_data"
	StatusError            = "error"
)

// Result is the retrain response body.
type Result struct {
	Status        string                    `json:"status"`
	ModelDeployed *bool                     `json:"model_deployed,omitempty"`
	Improvement   *float64                  `json:"improvement,omitempty"`
	Metrics       *models.EvaluationMetrics `json:"metrics,omitempty"`
	CurrentNDCG   *float64                  `json:"current_ndcg,omitempty"`
	NewNDCG       *float64                  `json:"new_ndcg,omitempty"`
	SampleCount   *int                      `json:"sample_count,omitempty"`
	MinRequired   *int                      `json:"min_required,omitempty"`
	Message       string                    `json:"message,omitempty"`
	Error         string                    `json:"error,omitempty"`
	ModelVersion  string                    `json:"model_version,omitempty"`
	Trainer       string                    `json:"trainer,omitempty"`
}

// JobConfig holds the batch parameters.
type JobConfig struct {
	WindowDays    int
	MinSamples    int
	TrainFraction float64
	NDCGAt        int
	ExportData    bool
}

type SampleSource interface {
	Build(ctx context.Context, since time.Time) ([]models.TrainingSample, error)
}

// RetrainJob runs build, split, train, evaluate and gate once.
type RetrainJob struct {
	cfg       JobConfig
	samples   SampleSource
	trainer   *FallbackTrainer
	artifacts *ArtifactStore
	gate      *Gate
	telemetry Sink
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

// NewRetrainJob accepts nil telemetry and obs.
func NewRetrainJob(cfg JobConfig, samples SampleSource, trainer *FallbackTrainer, artifacts *ArtifactStore, gate *Gate, telemetry Sink, obs *observability.Observability, log logger.Logger) *RetrainJob {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &RetrainJob{
		cfg:       cfg,
		samples:   samples,
		trainer:   trainer,
		artifacts: artifacts,
		gate:      gate,
		telemetry: telemetry,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "retrain-job"}),
		now:       time.Now,
	}
}

// Run always returns a Result. The error is non-nil only for status "error".
func (j *RetrainJob) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := j.logger.WithFields(map[string]interface{}{"runId": runID})
	ctx, span := j.obs.StartSpan(ctx, "training.retrain", attribute.String("run_id", runID))
	defer span.End()

	res, trainer, err := j.run(ctx, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.TrainingRuns.WithLabelValues(StatusError, trainer).Inc()
		log.Error("retrain failed", map[string]interface{}{"error": err.Error()})
		return &Result{Status: StatusError, Error: err.Error()}, err
	}
	metrics.TrainingRuns.WithLabelValues(res.Status, trainer).Inc()
	span.SetAttributes(attribute.String("status", res.Status))
	return res, nil
}

func (j *RetrainJob) run(ctx context.Context, log logger.Logger) (*Result, string, error) {
	started := j.now().UTC()
	version := models.NewVersion(started)
	since := started.AddDate(0, 0, -j.cfg.WindowDays)

	samples, err := j.samples.Build(ctx, since)
	if err != nil {
		return nil, "", apperrors.NewRetrievalError(err)
	}

	n := len(samples)
	if n < j.cfg.MinSamples {
		insufficient := apperrors.NewInsufficientDataError(n, j.cfg.MinSamples)
		log.Warn("insufficient data for retraining", map[string]interface{}{"details": insufficient.Details})
		required := j.cfg.MinSamples
		return &Result{
			Status:      StatusInsufficientData,
			SampleCount: &n,
			MinRequired: &required,
			Message:     insufficient.Details,
		}, "", nil
	}

	train, valid := Split(samples, j.cfg.TrainFraction)
	log.Info("training data split", map[string]interface{}{
		"version": version,
		"train":   len(train),
		"valid":   len(valid),
	})

	if j.cfg.ExportData {
		for name, part := range map[string][]models.TrainingSample{"training": train, "validation": valid} {
			if path, err := j.artifacts.StageDataset(ctx, name, version, part); err != nil {
				log.Warn("dataset export failed", map[string]interface{}{"dataset": name, "error": err.Error()})
			} else {
				log.Debug("dataset exported", map[string]interface{}{"dataset": name, "path": path})
			}
		}
	}

	booster, trainer, err := j.trainer.Train(ctx, train, valid)
	if err != nil {
		return nil, "", err
	}

	staged, err := j.artifacts.StageModel(ctx, version, booster)
	if err != nil {
		return nil, trainer, apperrors.NewTrainingFailedError(err)
	}

	m, err := Evaluate(booster, valid, j.cfg.NDCGAt)
	if err != nil {
		return nil, trainer, err
	}

	decision, err := j.gate.Decide(ctx, staged, version, m)
	if err != nil {
		return nil, trainer, err
	}
	metrics.PromotionDecisions.WithLabelValues(boolLabel(decision.Deployed)).Inc()

	j.record(ctx, log, Report{
		ModelVersion: version,
		Metrics:      m,
		Improvement:  decision.Improvement,
		CurrentNDCG:  decision.CurrentNDCG,
		Deployed:     decision.Deployed,
		SampleCount:  n,
		Trainer:      trainer,
		RecordedAt:   j.now().UTC(),
	})

	deployed := decision.Deployed
	res := &Result{
		Status:        StatusSuccess,
		ModelDeployed: &deployed,
		Improvement:   &decision.Improvement,
		Metrics:       &m,
		CurrentNDCG:   &decision.CurrentNDCG,
		NewNDCG:       &m.NDCGAt10,
		SampleCount:   &n,
		ModelVersion:  version,
		Trainer:       trainer,
	}
	if !deployed {
		res.Message = "New model did not improve performance"
	}

	log.Info("retrain finished", map[string]interface{}{
		"version":     version,
		"deployed":    deployed,
		"improvement": decision.Improvement,
		"ndcg":        m.NDCGAt10,
		"trainer":     trainer,
	})
	return res, trainer, nil
}

func (j *RetrainJob) record(ctx context.Context, log logger.Logger, r Report) {
	if j.telemetry == nil {
		return
	}
	if err := j.telemetry.Record(ctx, r); err != nil {
		log.Warn("telemetry write failed", map[string]interface{}{"error": err.Error()})
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
