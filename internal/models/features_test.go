package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureVector_ValuesFollowNames(t *testing.T) {
	fv := FeatureVector{
		Similarity:          0.9,
		LocationScore:       0.8,
		AvailabilityScore:   0.7,
		SpecializationScore: 0.6,
		PriceScore:          0.5,
		YearsExperience:     12,
		CertificationCount:  3,
	}
	vals := fv.Values()
	require.Len(t, vals, len(FeatureNames))
	assert.Equal(t, FeatureCount, len(FeatureNames))
	assert.Equal(t, 0.9, vals[0])
	assert.Equal(t, 3.0, vals[6])

	back, err := FeatureVectorFromValues(vals)
	require.NoError(t, err)
	assert.Equal(t, fv, back)

	_, err = FeatureVectorFromValues(vals[:6])
	assert.Error(t, err)
}

func TestAvailability_SlotMissing(t *testing.T) {
	var a Availability
	assert.False(t, a.Slot("monday", "morning").Available)

	a = Availability{"monday": {"morning": {Available: true, Start: "08:00"}}}
	assert.True(t, a.Slot("monday", "morning").Available)
	assert.False(t, a.Slot("tuesday", "morning").Available)
}

func TestNewVersion(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))
	assert.Equal(t, "20250304_040607", NewVersion(ts))
}
