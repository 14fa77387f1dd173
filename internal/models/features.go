// internal/models/features.go
package models

import "fmt"

// FeatureNames is the column order shared by the scorer and every trained model.
var FeatureNames = []string{
	"similarity",
	"location_score",
	"availability_score",
	"specialization_score",
	"price_score",
	"years_experience",
	"certification_count",
}

// FeatureCount is len(FeatureNames).
const FeatureCount = 7

type FeatureVector struct {
	Similarity          float64 `json:"similarity"`
	LocationScore       float64 `json:"location_score"`
	AvailabilityScore   float64 `json:"availability_score"`
	SpecializationScore float64 `json:"specialization_score"`
	PriceScore          float64 `json:"price_score"`
	YearsExperience     float64 `json:"years_experience"`
	CertificationCount  float64 `json:"certification_count"`
}

// Values returns the vector in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.Similarity,
		f.LocationScore,
		f.AvailabilityScore,
		f.SpecializationScore,
		f.PriceScore,
		f.YearsExperience,
		f.CertificationCount,
	}
}

// FeatureVectorFromValues is the inverse of Values.
func FeatureVectorFromValues(v []float64) (FeatureVector, error) {
	if len(v) != FeatureCount {
		return FeatureVector{}, fmt.Errorf("feature vector needs %d values, got %d", FeatureCount, len(v))
	}
	return FeatureVector{
		Similarity:          v[0],
		LocationScore:       v[1],
		AvailabilityScore:   v[2],
		SpecializationScore: v[3],
		PriceScore:          v[4],
		YearsExperience:     v[5],
		CertificationCount:  v[6],
	}, nil
}
