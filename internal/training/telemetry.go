// internal/training/telemetry.go
package training

import (
	"context"
	"errors"
	"time"

	"caregiver-matching/internal/common/database"
	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/observability"
	"caregiver-matching/internal/models"
)

// Report is one evaluation outcome as published to telemetry.
type Report struct {
	ModelVersion string                   `json:"model_version"`
	Metrics      models.EvaluationMetrics `json:"metrics"`
	Improvement  float64                  `json:"improvement"`
	CurrentNDCG  float64                  `json:"current_ndcg"`
	Deployed     bool                     `json:"model_deployed"`
	SampleCount  int                      `json:"sample_count"`
	Trainer      string                   `json:"trainer"`
	RecordedAt   time.Time                `json:"recorded_at"`
}

// Sink receives evaluation reports. Callers never fail a run on a sink error.
type Sink interface {
	Record(ctx context.Context, r Report) error
}

// OTelSink publishes the metrics as gauges labelled with the model version.
type OTelSink struct {
	obs *observability.Observability
}

func NewOTelSink(obs *observability.Observability) *OTelSink {
	return &OTelSink{obs: obs}
}

func (s *OTelSink) Record(ctx context.Context, r Report) error {
	s.obs.RecordModelQuality(ctx, r.ModelVersion, r.Metrics.NDCGAt10, r.Metrics.MSE, r.Metrics.MAE, r.Improvement, r.Deployed)
	return nil
}

type documentIndexer interface {
	IndexDocument(ctx context.Context, index string, doc interface{}) error
}

// ElasticsearchSink keeps the evaluation history in an index.
type ElasticsearchSink struct {
	es    documentIndexer
	index string
}

func NewElasticsearchSink(es *database.ElasticsearchClient, index string) *ElasticsearchSink {
	return &ElasticsearchSink{es: es, index: index}
}

func (s *ElasticsearchSink) Record(ctx context.Context, r Report) error {
	if err := s.es.IndexDocument(ctx, s.index, r); err != nil {
		return apperrors.NewTelemetryError("elasticsearch", err)
	}
	return nil
}

// MultiSink records to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
