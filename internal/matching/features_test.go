package matching

import (
	"testing"

	"caregiver-matching/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPriceScore(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		budget float64
		want   float64
	}{
		{"within budget", 20, 25, 0.76},
		{"exactly on budget", 25, 25, 0.7},
		{"half over budget", 30, 20, 0.5},
		{"double budget", 40, 20, 0},
		{"far over budget clamps", 100, 20, 0},
		{"no budget", 20, 0, 0.5},
		{"no rate", 0, 25, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PriceScore(tt.rate, tt.budget), 1e-9)
		})
	}
}

func TestPriceScore_WithinBudgetNeverBelowFloor(t *testing.T) {
	for rate := 1.0; rate <= 50; rate++ {
		assert.GreaterOrEqual(t, PriceScore(rate, 50), 0.7-1e-12)
	}
}

func TestAvailabilityScore(t *testing.T) {
	senior := models.Availability{
		"monday": {
			"morning":   {Available: true, Start: "08:00", End: "12:00"},
			"afternoon": {Available: true, Start: "13:00", End: "17:00"},
		},
	}

	t.Run("monday morning overlap only", func(t *testing.T) {
		caregiver := models.Availability{
			"monday": {
				"morning":   {Available: true, Start: "09:00", End: "11:00"},
				"afternoon": {Available: false},
			},
		}
		assert.Equal(t, 0.5, AvailabilityScore(senior, caregiver))
	})

	t.Run("available but hours do not touch", func(t *testing.T) {
		caregiver := models.Availability{
			"monday": {
				"morning":   {Available: true, Start: "12:30", End: "13:00"},
				"afternoon": {Available: true, Start: "17:30", End: "20:00"},
			},
		}
		assert.Equal(t, 0.0, AvailabilityScore(senior, caregiver))
	})

	t.Run("missing bounds cover the whole day", func(t *testing.T) {
		caregiver := models.Availability{
			"monday": {
				"morning":   {Available: true},
				"afternoon": {Available: true, End: "13:00"},
			},
		}
		assert.Equal(t, 1.0, AvailabilityScore(senior, caregiver))
	})

	t.Run("senior with no availability", func(t *testing.T) {
		assert.Equal(t, 0.0, AvailabilityScore(nil, senior))
	})
}

func TestSpecializationScore(t *testing.T) {
	assert.Equal(t, 0.5, SpecializationScore([]string{"dementia", "diabetes"}, []string{"dementia", "mobility"}))
	assert.Equal(t, 1.0, SpecializationScore([]string{"dementia", "dementia"}, []string{"dementia"}))
	assert.Equal(t, 0.0, SpecializationScore(nil, []string{"dementia"}))
	assert.Equal(t, 0.0, SpecializationScore([]string{"dementia"}, nil))
}

func TestLocationScore(t *testing.T) {
	assert.Equal(t, 1.0, LocationScore(0, 50))
	assert.InDelta(t, 0.8, LocationScore(10, 50), 1e-9)
	assert.Equal(t, 0.0, LocationScore(75, 50))
	assert.Equal(t, 0.5, LocationScore(10, 0))
}
