// internal/models/training.go
package models

import "time"

// TrainingSample is one rated historical match. Features are the values stored at match time.
type TrainingSample struct {
	SeniorID    string
	CaregiverID string
	Rating      float64
	Features    FeatureVector
	PastRating  float64
	RatedAt     time.Time
}

// EvaluationMetrics are computed on the validation split.
type EvaluationMetrics struct {
	NDCGAt10 float64 `json:"ndcg@10"`
	MSE      float64 `json:"mse"`
	MAE      float64 `json:"mae"`
}

// VersionLayout stamps staged artifacts and registry entries (UTC).
const VersionLayout = "20060102_150405"

// NewVersion returns the version stamp for t.
func NewVersion(t time.Time) string {
	return t.UTC().Format(VersionLayout)
}
