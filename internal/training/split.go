// internal/training/split.go
package training

import (
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
)

// Split cuts samples positionally at fraction, then moves the cut forward to the next senior
// boundary so no group straddles both partitions. If that would leave validation empty the
// plain positional cut is used.
func Split(samples []models.TrainingSample, fraction float64) (train, valid []models.TrainingSample) {
	cut := int(float64(len(samples)) * fraction)
	if cut <= 0 || cut >= len(samples) {
		return samples[:cut:cut], samples[cut:]
	}

	aligned := cut
	for aligned < len(samples) && samples[aligned].SeniorID == samples[aligned-1].SeniorID {
		aligned++
	}
	if aligned < len(samples) {
		cut = aligned
	}
	return samples[:cut:cut], samples[cut:]
}

// ToDataset lays samples out for the trainer: FeatureNames order, rating as label and
// groups from contiguous senior runs.
func ToDataset(samples []models.TrainingSample) ranking.Dataset {
	ds := ranking.Dataset{
		Features: make([][]float64, len(samples)),
		Labels:   make([]float64, len(samples)),
	}
	keys := make([]string, len(samples))
	for i, s := range samples {
		ds.Features[i] = s.Features.Values()
		ds.Labels[i] = s.Rating
		keys[i] = s.SeniorID
	}
	ds.Groups = ranking.GroupsFromKeys(keys)
	return ds
}
