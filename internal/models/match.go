// internal/models/match.go
package models

import "time"

type ScoreType string

const (
	ScoreTypeML        ScoreType = "ml"
	ScoreTypeHeuristic ScoreType = "heuristic"
)

type MatchStatus string

const (
	MatchStatusReady     MatchStatus = "ready"
	MatchStatusNoMatches MatchStatus = "no_matches"
	MatchStatusError     MatchStatus = "error"
)

// MaxMatches caps a MatchSet.
const MaxMatches = 10

type ScoredMatch struct {
	CaregiverID string        `json:"caregiver_id"`
	FinalScore  float64       `json:"score"`
	ScoreType   ScoreType     `json:"score_type"`
	Similarity  float64       `json:"similarity"`
	Features    FeatureVector `json:"features"`
	Rank        int           `json:"rank"`
	// RetrievalOrder is the candidate's position in the similarity result.
	RetrievalOrder int `json:"-"`
}

// MatchRecord is the persisted form of a ranked match.
type MatchRecord struct {
	SeniorID string `json:"senior_id"`
	ScoredMatch
	CreatedAt time.Time `json:"created_at"`
}

// TriggerRecord identifies one queued matching request.
type TriggerRecord struct {
	QueueID  string `json:"queue_id"`
	SeniorID string `json:"senior_id"`
}
