// Package app assembles the matching pipeline and the retrain job from configuration.
package app

import (
	"database/sql"
	"time"

	"caregiver-matching/internal/common/camunda"
	"caregiver-matching/internal/common/config"
	"caregiver-matching/internal/common/database"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/common/observability"
	"caregiver-matching/internal/matching"
	"caregiver-matching/internal/ranking"
	"caregiver-matching/internal/training"
	"caregiver-matching/pkg/registry"
)

// Clients are the process-wide connections. SNS, SES, Zeebe and Elasticsearch may be nil.
type Clients struct {
	DB            *sql.DB
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Zeebe         *camunda.Client
	SNS           matching.SNSPublisher
	SES           matching.SESSender
	Obs           *observability.Observability
}

func (c Clients) withDefaults() Clients {
	if c.Obs == nil {
		c.Obs = observability.NewNoop()
	}
	return c
}

// Registry is the Postgres-backed model registry shared by the scorer and the gate.
func Registry(c Clients) registry.Store {
	return registry.NewPostgresStore(c.DB, registry.DefaultName)
}

// NewScorer builds the scorer without loading a model; call Reload before serving.
func NewScorer(cfg *config.Config, c Clients, log logger.Logger) *matching.Scorer {
	return matching.NewScorer(Registry(c), training.NewArtifactStore(cfg.Training.ArtifactDir), log)
}

// NewPipeline wires every pipeline stage around scorer.
func NewPipeline(cfg *config.Config, c Clients, scorer *matching.Scorer, log logger.Logger) *matching.Pipeline {
	c = c.withDefaults()
	m := cfg.Matching
	maps := cfg.Integrations.Maps

	distance := matching.NewMapsDistance(maps.BaseURL, maps.APIKey, config.GetDuration(maps.Timeout),
		c.Redis, config.GetDuration(m.DistanceCacheTTL), log)

	return matching.NewPipeline(matching.Deps{
		Seniors:    matching.NewSeniorStore(c.DB, c.Redis, config.GetDuration(m.ProfileCacheTTL), log),
		Retriever:  matching.NewRetriever(c.DB, m.SimilarityThreshold, m.CandidateLimit, log),
		Enricher:   matching.NewEnricher(distance, m.MaxDistanceKm, m.EnrichmentConcurrency, log),
		Scorer:     scorer,
		Matches:    matching.NewMatchStore(c.DB),
		Triggers:   matching.NewTriggerStore(c.DB),
		Notifier:   newNotifier(cfg, c, log),
		Escalator:  newEscalator(cfg, c),
		Guard:      matching.NewTimeoutGuard(config.GetDuration(m.ProcessingTimeout)),
		MaxMatches: m.MaxMatches,
		Obs:        c.Obs,
	}, log)
}

func newNotifier(cfg *config.Config, c Clients, log logger.Logger) *matching.Notifier {
	aws := cfg.Integrations.AWS
	var (
		snsClient matching.SNSPublisher
		sesClient matching.SESSender
	)
	if aws.SNS.Enabled {
		snsClient = c.SNS
	}
	if aws.SES.Enabled {
		sesClient = c.SES
	}
	return matching.NewNotifier(snsClient, sesClient, aws.SNS.TopicARN, aws.SES.FromEmail, log)
}

func newEscalator(cfg *config.Config, c Clients) matching.Escalator {
	retry := cfg.Integrations.Retry
	switch {
	case retry.Mode == "http":
		return matching.NewHTTPEscalator(retry.URL, config.GetDuration(retry.Timeout))
	case c.Zeebe != nil:
		return matching.NewZeebeEscalator(c.Zeebe, retry.ProcessID)
	default:
		return nil
	}
}

// TrainingParams maps the training section onto booster parameters.
func TrainingParams(cfg config.TrainingConfig) ranking.Params {
	p := ranking.DefaultParams()
	p.NumRounds = cfg.NumRounds
	p.LearningRate = cfg.LearningRate
	p.MaxLeaves = cfg.MaxLeaves
	p.MinDataInLeaf = cfg.MinDataInLeaf
	p.EarlyStoppingRounds = cfg.EarlyStoppingRounds
	p.EvalAt = cfg.NDCGAt
	return p
}

// NewRetrainJob wires the training batch. The managed trainer is tried first when a training
// service is configured.
func NewRetrainJob(cfg *config.Config, c Clients, exportData bool, log logger.Logger) *training.RetrainJob {
	c = c.withDefaults()
	tr := cfg.Training
	svc := cfg.Integrations.TrainingService
	params := TrainingParams(tr)

	var primary training.Trainer
	if svc.BaseURL != "" {
		primary = training.NewManagedTrainer(svc.BaseURL, svc.APIKey, params,
			config.GetDuration(svc.PollInterval), config.GetDuration(svc.Timeout), log)
	}
	trainer := training.NewFallbackTrainer(primary, training.NewLocalTrainer(params, log), log)

	artifacts := training.NewArtifactStore(tr.ArtifactDir)
	gate := training.NewGate(Registry(c), artifacts, tr.ProductionPath, tr.ImprovementThreshold)

	sinks := training.MultiSink{training.NewOTelSink(c.Obs)}
	if c.Elasticsearch != nil {
		sinks = append(sinks, training.NewElasticsearchSink(c.Elasticsearch, cfg.Observability.MetricsIndex))
	}

	return training.NewRetrainJob(training.JobConfig{
		WindowDays:    tr.WindowDays,
		MinSamples:    tr.MinSamples,
		TrainFraction: tr.TrainFraction,
		NDCGAt:        tr.NDCGAt,
		ExportData:    exportData,
	}, training.NewBuilder(c.DB, log), trainer, artifacts, gate, sinks, c.Obs, log)
}

// ReloadInterval is zero when periodic reload is disabled.
func ReloadInterval(cfg *config.Config) time.Duration {
	return config.GetDuration(cfg.Matching.ModelReloadInterval)
}
