// Package ranking holds the gradient-boosted tree ranker: the model, its plain-text format,
// the LambdaRank trainer and the NDCG metric shared with the evaluator.
package ranking

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrFeatureCount = errors.New("feature count mismatch")
	ErrMalformed    = errors.New("malformed model")
)

// Tree is a binary regression tree in array form. Child indices >= 0 point at internal
// nodes; a negative child c is the leaf ^c.
type Tree struct {
	SplitFeature []int
	Threshold    []float64
	Left         []int
	Right        []int
	LeafValue    []float64
	Shrinkage    float64
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	return len(t.LeafValue)
}

// Predict walks x down the tree. Values <= threshold go left.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.SplitFeature) == 0 {
		if len(t.LeafValue) == 0 {
			return 0
		}
		return t.LeafValue[0]
	}
	node := 0
	for {
		var next int
		if x[t.SplitFeature[node]] <= t.Threshold[node] {
			next = t.Left[node]
		} else {
			next = t.Right[node]
		}
		if next < 0 {
			return t.LeafValue[^next]
		}
		node = next
	}
}

func (t *Tree) validate(numFeatures int) error {
	internal := len(t.SplitFeature)
	if len(t.LeafValue) != internal+1 {
		return fmt.Errorf("%w: %d leaves for %d splits", ErrMalformed, len(t.LeafValue), internal)
	}
	if len(t.Threshold) != internal || len(t.Left) != internal || len(t.Right) != internal {
		return fmt.Errorf("%w: split arrays disagree in length", ErrMalformed)
	}
	for i := 0; i < internal; i++ {
		if t.SplitFeature[i] < 0 || t.SplitFeature[i] >= numFeatures {
			return fmt.Errorf("%w: split feature %d out of range", ErrMalformed, t.SplitFeature[i])
		}
		for _, c := range []int{t.Left[i], t.Right[i]} {
			if c >= internal || (c < 0 && ^c >= len(t.LeafValue)) {
				return fmt.Errorf("%w: child %d out of range", ErrMalformed, c)
			}
			// Internal children must come after their parent, otherwise Predict can loop.
			if c >= 0 && c <= i {
				return fmt.Errorf("%w: node %d points back to node %d", ErrMalformed, i, c)
			}
		}
	}
	return nil
}

// Booster is an additive ensemble of trees.
type Booster struct {
	FeatureNames []string
	Objective    string
	Trees        []*Tree
}

// NumFeatures is the input width the model expects.
func (b *Booster) NumFeatures() int {
	return len(b.FeatureNames)
}

// Predict returns the raw score for x.
func (b *Booster) Predict(x []float64) (float64, error) {
	if len(x) != b.NumFeatures() {
		return 0, fmt.Errorf("%w: model expects %d, got %d", ErrFeatureCount, b.NumFeatures(), len(x))
	}
	var sum float64
	for _, t := range b.Trees {
		sum += t.Predict(x)
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("non-finite prediction")
	}
	return sum, nil
}

// PredictAll scores every row of X.
func (b *Booster) PredictAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		p, err := b.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Validate checks structural consistency of every tree.
func (b *Booster) Validate() error {
	if b.NumFeatures() == 0 {
		return fmt.Errorf("%w: no features", ErrMalformed)
	}
	for i, t := range b.Trees {
		if err := t.validate(b.NumFeatures()); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
