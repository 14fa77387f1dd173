package ranking

import (
	"fmt"
	"math"
	"sort"
)

// NDCGAtK is the mean NDCG@k over groups. Items are ranked by prediction descending with
// ties kept in row order; the ideal ranking sorts by label descending. A group whose ideal
// DCG is zero scores 0.
func NDCGAtK(labels, preds []float64, groups []int, k int) (float64, error) {
	if len(labels) != len(preds) {
		return 0, fmt.Errorf("%d labels for %d predictions", len(labels), len(preds))
	}
	if len(groups) == 0 || len(labels) == 0 {
		return 0, ErrEmptyDataset
	}
	if k <= 0 {
		return 0, fmt.Errorf("k must be positive, got %d", k)
	}

	var sum float64
	start := 0
	for _, size := range groups {
		end := start + size
		if size <= 0 || end > len(labels) {
			return 0, fmt.Errorf("group sizes do not cover %d rows", len(labels))
		}
		sum += groupNDCG(labels[start:end], preds[start:end], k)
		start = end
	}
	if start != len(labels) {
		return 0, fmt.Errorf("groups cover %d of %d rows", start, len(labels))
	}

	mean := sum / float64(len(groups))
	if math.IsNaN(mean) {
		return 0, fmt.Errorf("ndcg is NaN")
	}
	return mean, nil
}

func groupNDCG(labels, preds []float64, k int) float64 {
	idcg := idealDCG(labels, k)
	if idcg == 0 {
		return 0
	}

	order := rankByScore(preds)
	var dcg float64
	for r := 0; r < len(order) && r < k; r++ {
		dcg += labels[order[r]] * discount(r)
	}
	return dcg / idcg
}

func idealDCG(labels []float64, k int) float64 {
	sorted := append([]float64(nil), labels...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	var idcg float64
	for r := 0; r < len(sorted) && r < k; r++ {
		idcg += sorted[r] * discount(r)
	}
	return idcg
}

// rankByScore returns row indices ordered by score descending, stable on ties.
func rankByScore(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}

// discount for 0-based position r is 1/log2(r+2).
func discount(r int) float64 {
	return 1 / math.Log2(float64(r)+2)
}
