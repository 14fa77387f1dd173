// internal/training/evaluator.go
package training

import (
	"fmt"
	"math"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/models"
	"caregiver-matching/internal/ranking"
)

// Evaluate scores the validation partition: mean per-senior NDCG@k plus MSE and MAE of the
// raw predictions against the ratings.
func Evaluate(b *ranking.Booster, valid []models.TrainingSample, k int) (models.EvaluationMetrics, error) {
	if len(valid) == 0 {
		return models.EvaluationMetrics{}, apperrors.NewEvaluationError(ranking.ErrEmptyDataset)
	}
	ds := ToDataset(valid)

	preds, err := b.PredictAll(ds.Features)
	if err != nil {
		return models.EvaluationMetrics{}, apperrors.NewEvaluationError(err)
	}

	ndcg, err := ranking.NDCGAtK(ds.Labels, preds, ds.Groups, k)
	if err != nil {
		return models.EvaluationMetrics{}, apperrors.NewEvaluationError(err)
	}

	var se, ae float64
	for i, p := range preds {
		d := p - ds.Labels[i]
		se += d * d
		ae += math.Abs(d)
	}
	n := float64(len(preds))
	m := models.EvaluationMetrics{NDCGAt10: ndcg, MSE: se / n, MAE: ae / n}

	for name, v := range map[string]float64{"ndcg": m.NDCGAt10, "mse": m.MSE, "mae": m.MAE} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.EvaluationMetrics{}, apperrors.NewEvaluationError(fmt.Errorf("%s is not finite", name))
		}
	}
	return m, nil
}
