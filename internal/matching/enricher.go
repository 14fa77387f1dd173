// internal/matching/enricher.go
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/common/metrics"
	"caregiver-matching/internal/models"

	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingCaregiverID = errors.New("candidate has no caregiver id")
	ErrBadSimilarity      = errors.New("candidate similarity is not finite")
	ErrNegativeAttribute  = errors.New("caregiver attribute is negative")
)

// DistanceProvider returns the travel distance between two points in kilometres.
type DistanceProvider interface {
	DistanceKm(ctx context.Context, from, to models.Location) (float64, error)
}

// Enriched pairs a candidate with its feature vector.
type Enriched struct {
	Candidate models.Candidate
	Features  models.FeatureVector
}

type Enricher struct {
	distance    DistanceProvider
	maxKm       float64
	concurrency int
	logger      logger.Logger
}

// NewEnricher accepts a nil distance provider; location_score is then always neutral.
func NewEnricher(distance DistanceProvider, maxDistanceKm float64, concurrency int, log logger.Logger) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		distance:    distance,
		maxKm:       maxDistanceKm,
		concurrency: concurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "enricher"}),
	}
}

// Enrich computes the feature vector for one candidate. Field-level problems fall back to
// neutral defaults; an error means the candidate must be dropped.
func (e *Enricher) Enrich(ctx context.Context, senior *models.SeniorProfile, c models.Candidate) (models.FeatureVector, error) {
	if c.CaregiverID == "" {
		return models.FeatureVector{}, apperrors.NewEnrichmentError(c.CaregiverID, ErrMissingCaregiverID)
	}
	if math.IsNaN(c.Similarity) || math.IsInf(c.Similarity, 0) {
		return models.FeatureVector{}, apperrors.NewEnrichmentError(c.CaregiverID, ErrBadSimilarity)
	}

	var cg models.CaregiverProfile
	if len(c.Metadata) > 0 {
		if err := json.Unmarshal(c.Metadata, &cg); err != nil {
			return models.FeatureVector{}, apperrors.NewEnrichmentError(c.CaregiverID, fmt.Errorf("decode metadata: %w", err))
		}
	}
	if cg.HourlyRate < 0 || cg.YearsExperience < 0 {
		return models.FeatureVector{}, apperrors.NewEnrichmentError(c.CaregiverID, ErrNegativeAttribute)
	}

	return models.FeatureVector{
		Similarity:          c.Similarity,
		LocationScore:       e.locationScore(ctx, senior.ID, c.CaregiverID, senior.Location, cg.Location),
		AvailabilityScore:   AvailabilityScore(senior.Availability, cg.Availability),
		SpecializationScore: SpecializationScore(senior.Conditions, cg.Specializations),
		PriceScore:          PriceScore(cg.HourlyRate, senior.Budget),
		YearsExperience:     float64(cg.YearsExperience),
		CertificationCount:  float64(len(cg.Certifications)),
	}, nil
}

func (e *Enricher) locationScore(ctx context.Context, seniorID, caregiverID string, from, to *models.Location) float64 {
	if e.distance == nil || from == nil || to == nil {
		metrics.EnrichmentFallbacks.WithLabelValues("location_score").Inc()
		e.logger.Warn("location unavailable, using neutral location score", map[string]interface{}{
			"seniorId":          seniorID,
			"caregiverId":       caregiverID,
			"seniorLocation":    from != nil,
			"caregiverLocation": to != nil,
			"distanceProvider":  e.distance != nil,
		})
		return neutralScore
	}
	km, err := e.distance.DistanceKm(ctx, *from, *to)
	if err != nil {
		metrics.EnrichmentFallbacks.WithLabelValues("location_score").Inc()
		e.logger.Warn("distance lookup failed, using neutral location score", map[string]interface{}{
			"seniorId":    seniorID,
			"caregiverId": caregiverID,
			"error":       err.Error(),
		})
		return neutralScore
	}
	return LocationScore(km, e.maxKm)
}

// EnrichAll enriches candidates with bounded concurrency. Output keeps input order; failed
// candidates are logged and dropped.
func (e *Enricher) EnrichAll(ctx context.Context, senior *models.SeniorProfile, candidates []models.Candidate) []Enriched {
	results := make([]*Enriched, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			fv, err := e.Enrich(gctx, senior, c)
			if err != nil {
				metrics.CandidatesDropped.Inc()
				e.logger.Warn("dropping candidate", map[string]interface{}{
					"caregiverId": c.CaregiverID,
					"error":       err.Error(),
				})
				return nil
			}
			results[i] = &Enriched{Candidate: c, Features: fv}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Enriched, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
