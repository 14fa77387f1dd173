package training

import (
	"fmt"
	"time"

	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
)

// syntheticSamples builds seniors x perSenior rated matches whose rating follows similarity.
func syntheticSamples(seniors, perSenior int) []models.TrainingSample {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var out []models.TrainingSample
	for s := 0; s < seniors; s++ {
		for c := 0; c < perSenior; c++ {
			sim := 0.6 + 0.4*float64((c*7+s*3)%perSenior)/float64(perSenior)
			out = append(out, models.TrainingSample{
				SeniorID:    fmt.Sprintf("senior-%02d", s),
				CaregiverID: fmt.Sprintf("cg-%02d-%02d", s, c),
				Rating:      1 + float64(int((sim-0.6)*10)),
				Features: models.FeatureVector{
					Similarity:          sim,
					LocationScore:       0.5,
					AvailabilityScore:   float64(c%3) / 2,
					SpecializationScore: 0.5,
					PriceScore:          0.8,
					YearsExperience:     float64(c),
					CertificationCount:  1,
				},
				RatedAt: base.Add(time.Duration(s*perSenior+c) * time.Hour),
			})
		}
	}
	return out
}

// thresholdModel scores +1 when similarity > 0.8 and -1 otherwise.
func thresholdModel() *ranking.Booster {
	return &ranking.Booster{
		FeatureNames: models.FeatureNames,
		Objective:    "lambdarank",
		Trees: []*ranking.Tree{{
			SplitFeature: []int{0},
			Threshold:    []float64{0.8},
			Left:         []int{^0},
			Right:        []int{^1},
			LeafValue:    []float64{-1, 1},
			Shrinkage:    1,
		}},
	}
}

func smallParams() ranking.Params {
	p := ranking.DefaultParams()
	p.NumRounds = 20
	p.LearningRate = 0.1
	p.MinDataInLeaf = 2
	p.MaxLeaves = 7
	return p
}
