// internal/training/export.go
package training

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"caregiver-matching/internal/models"
)

// CSVHeader is the column layout of exported datasets.
func CSVHeader() []string {
	h := []string{"senior_id", "caregiver_id", "rating"}
	h = append(h, models.FeatureNames...)
	return append(h, "past_rating", "rated_at")
}

// WriteCSV writes samples with a header row.
func WriteCSV(w io.Writer, samples []models.TrainingSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{s.SeniorID, s.CaregiverID, formatFloat(s.Rating)}
		for _, v := range s.Features.Values() {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(s.PastRating), s.RatedAt.UTC().Format(time.RFC3339))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
