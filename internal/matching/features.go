// internal/matching/features.go
package matching

import (
	"math"

	"caregiver-matching/internal/models"
)

const (
	neutralScore = 0.5

	defaultSlotStart = "00:00"
	defaultSlotEnd   = "23:59"

	// priceDiscount is the spread of price_score inside the budget: [0.7, 1.0].
	priceDiscount = 0.3
)

// LocationScore maps a distance to [0,1], reaching 0 at maxKm.
func LocationScore(km, maxKm float64) float64 {
	if maxKm <= 0 || math.IsNaN(km) || km < 0 {
		return neutralScore
	}
	return math.Max(0, 1-km/maxKm)
}

// AvailabilityScore is the share of the senior's available slots that the caregiver also
// covers with overlapping hours. Times compare lexically as "HH:MM".
func AvailabilityScore(senior, caregiver models.Availability) float64 {
	var wanted, covered int
	for _, day := range models.Days {
		for _, slot := range models.Slots {
			s := senior.Slot(day, slot)
			if !s.Available {
				continue
			}
			wanted++

			c := caregiver.Slot(day, slot)
			if !c.Available {
				continue
			}
			sStart, sEnd := slotBounds(s)
			cStart, cEnd := slotBounds(c)
			if sStart <= cEnd && cStart <= sEnd {
				covered++
			}
		}
	}
	if wanted == 0 {
		return 0
	}
	return float64(covered) / float64(wanted)
}

func slotBounds(t models.TimeSlot) (string, string) {
	start, end := t.Start, t.End
	if start == "" {
		start = defaultSlotStart
	}
	if end == "" {
		end = defaultSlotEnd
	}
	return start, end
}

// SpecializationScore is |conditions ∩ specializations| / |conditions|.
func SpecializationScore(conditions, specializations []string) float64 {
	if len(conditions) == 0 || len(specializations) == 0 {
		return 0
	}
	offered := make(map[string]struct{}, len(specializations))
	for _, s := range specializations {
		offered[s] = struct{}{}
	}
	wanted := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		wanted[c] = struct{}{}
	}
	var hits int
	for c := range wanted {
		if _, ok := offered[c]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(wanted))
}

// PriceScore stays in [0.7,1] within budget and decays linearly to 0 at twice the budget.
func PriceScore(rate, budget float64) float64 {
	if rate <= 0 || budget <= 0 {
		return neutralScore
	}
	if rate <= budget {
		return 1 - (rate/budget)*priceDiscount
	}
	return math.Max(0, 1-(rate-budget)/budget)
}
