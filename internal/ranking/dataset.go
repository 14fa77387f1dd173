package ranking

import (
	"errors"
	"fmt"
	"math"
)

var ErrEmptyDataset = errors.New("empty dataset")

// Dataset is a grouped ranking dataset. Rows of one group are contiguous and Groups holds
// the run lengths in row order.
type Dataset struct {
	Features [][]float64
	Labels   []float64
	Groups   []int
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// Validate checks that the dataset is rectangular, finite and fully covered by Groups.
func (d Dataset) Validate(numFeatures int) error {
	if d.Len() == 0 {
		return ErrEmptyDataset
	}
	if len(d.Features) != d.Len() {
		return fmt.Errorf("%d feature rows for %d labels", len(d.Features), d.Len())
	}
	total := 0
	for _, g := range d.Groups {
		if g <= 0 {
			return fmt.Errorf("group size must be positive, got %d", g)
		}
		total += g
	}
	if total != d.Len() {
		return fmt.Errorf("groups cover %d rows, dataset has %d", total, d.Len())
	}
	for i, row := range d.Features {
		if len(row) != numFeatures {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureCount, i, len(row), numFeatures)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d has a non-finite feature", i)
			}
		}
		if math.IsNaN(d.Labels[i]) || math.IsInf(d.Labels[i], 0) {
			return fmt.Errorf("row %d has a non-finite label", i)
		}
	}
	return nil
}

// GroupsFromKeys returns the contiguous run lengths of keys.
func GroupsFromKeys(keys []string) []int {
	var groups []int
	for i := range keys {
		if i == 0 || keys[i] != keys[i-1] {
			groups = append(groups, 1)
			continue
		}
		groups[len(groups)-1]++
	}
	return groups
}
