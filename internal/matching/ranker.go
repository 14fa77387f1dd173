// internal/matching/ranker.go
package matching

import (
	"sort"

	"caregiver-matching/internal/models"
)

// Rank orders matches by final score, breaking ties by similarity, then retrieval order,
// then caregiver id. The result is truncated to max and ranked 1..N. The input is not modified.
func Rank(matches []models.ScoredMatch, max int) []models.ScoredMatch {
	out := make([]models.ScoredMatch, len(matches))
	copy(out, matches)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.RetrievalOrder != b.RetrievalOrder {
			return a.RetrievalOrder < b.RetrievalOrder
		}
		return a.CaregiverID < b.CaregiverID
	})

	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
