// internal/matching/pipeline.go
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/common/metrics"
	"caregiver-matching/internal/common/observability"
	"caregiver-matching/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Outcome is how a pipeline run ended.
type Outcome string

const (
	OutcomeReady     Outcome = "ready"
	OutcomeNoMatches Outcome = "no_matches"
	OutcomeEscalated Outcome = "escalated"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeError     Outcome = "error"
)

type SeniorSource interface {
	Get(ctx context.Context, id string) (*models.SeniorProfile, error)
}

type CandidateSource interface {
	Retrieve(ctx context.Context, embedding []float32) ([]models.Candidate, error)
}

type MatchWriter interface {
	ReplaceMatches(ctx context.Context, seniorID string, matches []models.ScoredMatch, now time.Time) error
	MarkNoMatches(ctx context.Context, seniorID string, now time.Time) error
}

type TriggerQueue interface {
	Delete(ctx context.Context, queueID string) error
	MarkError(ctx context.Context, queueID, message string) error
}

type MatchNotifier interface {
	NotifyMatchesReady(ctx context.Context, senior *models.SeniorProfile, matchCount int) []models.Notification
}

// Result summarises one run.
type Result struct {
	Outcome       Outcome               `json:"outcome"`
	QueueID       string                `json:"queueId"`
	SeniorID      string                `json:"seniorId"`
	MatchCount    int                   `json:"matchCount"`
	Matches       []models.ScoredMatch  `json:"matches,omitempty"`
	Notifications []models.Notification `json:"notifications,omitempty"`
	ModelVersion  string                `json:"modelVersion,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}

// Deps are the pipeline collaborators. Notifier and Escalator may be nil.
type Deps struct {
	Seniors    SeniorSource
	Retriever  CandidateSource
	Enricher   *Enricher
	Scorer     *Scorer
	Matches    MatchWriter
	Triggers   TriggerQueue
	Notifier   MatchNotifier
	Escalator  Escalator
	Guard      *TimeoutGuard
	MaxMatches int
	Obs        *observability.Observability
}

// Pipeline turns one trigger into a persisted MatchSet.
type Pipeline struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func NewPipeline(deps Deps, log logger.Logger) *Pipeline {
	if deps.MaxMatches <= 0 {
		deps.MaxMatches = models.MaxMatches
	}
	if deps.Obs == nil {
		deps.Obs = observability.NewNoop()
	}
	return &Pipeline{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "match-pipeline"}),
		now:    time.Now,
	}
}

// Run processes a fresh trigger and escalates to the async path when the soft deadline has passed.
func (p *Pipeline) Run(ctx context.Context, trigger models.TriggerRecord) (*Result, error) {
	return p.run(ctx, trigger, true)
}

// RunAsync processes an escalated trigger without the deadline check.
func (p *Pipeline) RunAsync(ctx context.Context, trigger models.TriggerRecord) (*Result, error) {
	return p.run(ctx, trigger, false)
}

func (p *Pipeline) run(ctx context.Context, trigger models.TriggerRecord, checkDeadline bool) (*Result, error) {
	start := p.now()
	ctx, span := p.deps.Obs.StartSpan(ctx, "matching.pipeline",
		attribute.String("senior_id", trigger.SeniorID),
		attribute.String("queue_id", trigger.QueueID),
		attribute.Bool("async", !checkDeadline),
	)
	defer span.End()

	log := p.logger.WithFields(map[string]interface{}{
		"seniorId": trigger.SeniorID,
		"queueId":  trigger.QueueID,
	})

	res, err := p.process(ctx, log, trigger, start, checkDeadline)
	if err != nil {
		metrics.MatchingRuns.WithLabelValues(string(OutcomeError)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("matching failed", map[string]interface{}{"error": err.Error()})
		p.annotateTrigger(ctx, log, trigger.QueueID, err)
		return nil, err
	}

	metrics.MatchingRuns.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)), attribute.Int("match_count", res.MatchCount))
	log.Info("matching finished", map[string]interface{}{
		"outcome":    res.Outcome,
		"matchCount": res.MatchCount,
		"durationMs": p.now().Sub(start).Milliseconds(),
	})
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, log logger.Logger, trigger models.TriggerRecord, start time.Time, checkDeadline bool) (*Result, error) {
	res := &Result{QueueID: trigger.QueueID, SeniorID: trigger.SeniorID}

	if trigger.SeniorID == "" {
		return p.invalid(log, res, "trigger has no senior id"), nil
	}

	senior, err := p.deps.Seniors.Get(ctx, trigger.SeniorID)
	if errors.Is(err, ErrSeniorNotFound) {
		return p.invalid(log, res, "senior not found"), nil
	}
	if err != nil {
		return nil, apperrors.NewRetrievalError(err)
	}
	if len(senior.Embedding) == 0 {
		return p.invalid(log, res, "senior has no embedding"), nil
	}
	if len(senior.Embedding) != models.EmbeddingDim {
		return p.invalid(log, res, fmt.Sprintf("embedding has %d dimensions, want %d", len(senior.Embedding), models.EmbeddingDim)), nil
	}

	if checkDeadline && p.deps.Guard != nil && p.deps.Guard.Expired(start) {
		if p.deps.Escalator == nil {
			return nil, apperrors.NewEscalationError(errors.New("deadline passed and no escalator configured"))
		}
		if err := p.deps.Escalator.Escalate(ctx, trigger); err != nil {
			return nil, err
		}
		res.Outcome = OutcomeEscalated
		return res, nil
	}

	candidates, err := p.deps.Retriever.Retrieve(ctx, senior.Embedding)
	if err != nil {
		return nil, err
	}
	now := p.now().UTC()
	if len(candidates) == 0 {
		if err := p.deps.Matches.MarkNoMatches(ctx, senior.ID, now); err != nil {
			return nil, err
		}
		res.Outcome = OutcomeNoMatches
		return res, nil
	}

	enriched := p.deps.Enricher.EnrichAll(ctx, senior, candidates)
	scored := make([]models.ScoredMatch, 0, len(enriched))
	for _, e := range enriched {
		score, scoreType := p.deps.Scorer.Score(e.Features)
		metrics.MatchesScored.WithLabelValues(string(scoreType)).Inc()
		scored = append(scored, models.ScoredMatch{
			CaregiverID:    e.Candidate.CaregiverID,
			FinalScore:     score,
			ScoreType:      scoreType,
			Similarity:     e.Candidate.Similarity,
			Features:       e.Features,
			RetrievalOrder: e.Candidate.Order,
		})
	}
	ranked := Rank(scored, p.deps.MaxMatches)

	if err := p.deps.Matches.ReplaceMatches(ctx, senior.ID, ranked, now); err != nil {
		return nil, err
	}

	res.Outcome = OutcomeReady
	res.MatchCount = len(ranked)
	res.Matches = ranked
	res.ModelVersion = p.deps.Scorer.ModelVersion()

	if p.deps.Notifier != nil && res.MatchCount > 0 {
		res.Notifications = p.deps.Notifier.NotifyMatchesReady(ctx, senior, res.MatchCount)
	}

	if trigger.QueueID != "" {
		if err := p.deps.Triggers.Delete(ctx, trigger.QueueID); err != nil {
			log.Warn("failed to delete trigger record", map[string]interface{}{"error": err.Error()})
		}
	}
	return res, nil
}

func (p *Pipeline) invalid(log logger.Logger, res *Result, reason string) *Result {
	log.Error("senior data failed validation", map[string]interface{}{
		"error": apperrors.NewValidationError(reason).Error(),
	})
	res.Outcome = OutcomeInvalid
	res.Reason = reason
	return res
}

func (p *Pipeline) annotateTrigger(ctx context.Context, log logger.Logger, queueID string, cause error) {
	if queueID == "" || p.deps.Triggers == nil {
		return
	}
	if err := p.deps.Triggers.MarkError(ctx, queueID, cause.Error()); err != nil {
		log.Warn("failed to annotate trigger record", map[string]interface{}{"error": err.Error()})
	}
}
