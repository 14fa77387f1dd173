package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Params control the LambdaRank booster. Training is fully deterministic: no row or
// feature sampling.
type Params struct {
	NumRounds           int
	LearningRate        float64
	MaxLeaves           int
	MinDataInLeaf       int
	MinSumHessian       float64
	LambdaL2            float64
	Sigma               float64
	EarlyStoppingRounds int
	EvalAt              int
}

// DefaultParams mirror the stock lambdarank configuration.
func DefaultParams() Params {
	return Params{
		NumRounds:           100,
		LearningRate:        0.05,
		MaxLeaves:           31,
		MinDataInLeaf:       5,
		MinSumHessian:       1e-3,
		Sigma:               1.0,
		EarlyStoppingRounds: 10,
		EvalAt:              10,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.NumRounds <= 0 {
		p.NumRounds = d.NumRounds
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.MaxLeaves < 2 {
		p.MaxLeaves = d.MaxLeaves
	}
	if p.MinDataInLeaf <= 0 {
		p.MinDataInLeaf = d.MinDataInLeaf
	}
	if p.MinSumHessian <= 0 {
		p.MinSumHessian = d.MinSumHessian
	}
	if p.Sigma <= 0 {
		p.Sigma = d.Sigma
	}
	if p.EvalAt <= 0 {
		p.EvalAt = d.EvalAt
	}
	return p
}

// TrainResult summarizes a run.
type TrainResult struct {
	Rounds        int
	BestIteration int
	BestScore     float64
	ValidHistory  []float64
	EarlyStopped  bool
}

// Train fits a LambdaRank booster on train. When valid is non-empty, NDCG@EvalAt on valid
// drives early stopping and the returned booster is truncated to the best iteration.
func Train(ctx context.Context, featureNames []string, train, valid Dataset, params Params) (*Booster, TrainResult, error) {
	p := params.withDefaults()
	numFeatures := len(featureNames)
	if err := train.Validate(numFeatures); err != nil {
		return nil, TrainResult{}, fmt.Errorf("training set: %w", err)
	}
	hasValid := valid.Len() > 0
	if hasValid {
		if err := valid.Validate(numFeatures); err != nil {
			return nil, TrainResult{}, fmt.Errorf("validation set: %w", err)
		}
	}

	booster := &Booster{
		FeatureNames: append([]string(nil), featureNames...),
		Objective:    "lambdarank",
	}
	res := TrainResult{BestScore: math.Inf(-1)}

	n := train.Len()
	scores := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	var validScores []float64
	if hasValid {
		validScores = make([]float64, valid.Len())
	}

	for round := 0; round < p.NumRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}

		lambdaGradients(scores, train.Labels, train.Groups, p.Sigma, grad, hess)
		tree := growTree(train.Features, grad, hess, rows, p)
		if len(tree.SplitFeature) == 0 {
			// No split clears the constraints; further rounds would repeat the same stump.
			break
		}
		booster.Trees = append(booster.Trees, tree)
		res.Rounds = round + 1

		for i, x := range train.Features {
			scores[i] += tree.Predict(x)
		}
		if !hasValid {
			continue
		}

		for i, x := range valid.Features {
			validScores[i] += tree.Predict(x)
		}
		score, err := NDCGAtK(valid.Labels, validScores, valid.Groups, p.EvalAt)
		if err != nil {
			return nil, res, fmt.Errorf("validation ndcg: %w", err)
		}
		res.ValidHistory = append(res.ValidHistory, score)
		if score > res.BestScore {
			res.BestScore = score
			res.BestIteration = round + 1
		} else if p.EarlyStoppingRounds > 0 && round+1-res.BestIteration >= p.EarlyStoppingRounds {
			res.EarlyStopped = true
			break
		}
	}

	if hasValid && res.BestIteration > 0 {
		booster.Trees = booster.Trees[:res.BestIteration]
	} else {
		res.BestIteration = len(booster.Trees)
		if math.IsInf(res.BestScore, -1) {
			res.BestScore = 0
		}
	}
	return booster, res, nil
}

// lambdaGradients fills grad and hess with the LambdaRank gradients of NDCG for the
// current scores. Gain is the raw label, matching the evaluation metric.
func lambdaGradients(scores, labels []float64, groups []int, sigma float64, grad, hess []float64) {
	for i := range grad {
		grad[i] = 0
		hess[i] = 0
	}
	start := 0
	for _, size := range groups {
		end := start + size
		groupLambdas(scores[start:end], labels[start:end], sigma, grad[start:end], hess[start:end])
		start = end
	}
}

func groupLambdas(scores, labels []float64, sigma float64, grad, hess []float64) {
	n := len(scores)
	if n < 2 {
		return
	}
	maxDCG := idealDCG(labels, n)
	if maxDCG <= 0 {
		return
	}
	invMaxDCG := 1 / maxDCG

	order := rankByScore(scores)
	var sumLambdas float64
	for a := 0; a < n-1; a++ {
		for b := a + 1; b < n; b++ {
			i, j := order[a], order[b]
			if labels[i] == labels[j] {
				continue
			}
			high, low := i, j
			highPos, lowPos := a, b
			if labels[i] < labels[j] {
				high, low = j, i
				highPos, lowPos = b, a
			}

			deltaScore := scores[high] - scores[low]
			gap := labels[high] - labels[low]
			pairedDiscount := math.Abs(discount(highPos) - discount(lowPos))
			deltaNDCG := gap * pairedDiscount * invMaxDCG

			prob := 1 / (1 + math.Exp(sigma*deltaScore))
			lambda := -sigma * deltaNDCG * prob
			h := sigma * sigma * deltaNDCG * prob * (1 - prob)

			grad[high] += lambda
			grad[low] -= lambda
			hess[high] += h
			hess[low] += h
			sumLambdas -= 2 * lambda
		}
	}

	if sumLambdas > 0 {
		norm := math.Log2(1+sumLambdas) / sumLambdas
		for i := range grad {
			grad[i] *= norm
			hess[i] *= norm
		}
	}
}

type leafState struct {
	rows  []int
	sumG  float64
	sumH  float64
	split *splitCandidate
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

type leafRef struct {
	node int
	left bool
}

// growTree grows a tree leaf-wise: the leaf with the largest gain is split next until
// MaxLeaves is reached or no leaf has a valid split.
func growTree(X [][]float64, grad, hess []float64, rows []int, p Params) *Tree {
	t := &Tree{Shrinkage: p.LearningRate}

	leaves := []*leafState{newLeaf(rows, grad, hess)}
	parents := []leafRef{{node: -1}}
	leaves[0].split = bestSplit(X, grad, hess, leaves[0], p)

	for len(leaves) < p.MaxLeaves {
		best := -1
		for i, l := range leaves {
			if l.split != nil && (best < 0 || l.split.gain > leaves[best].split.gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}

		s := leaves[best].split
		node := len(t.SplitFeature)
		rightLeaf := len(leaves)
		t.SplitFeature = append(t.SplitFeature, s.feature)
		t.Threshold = append(t.Threshold, s.threshold)
		t.Left = append(t.Left, ^best)
		t.Right = append(t.Right, ^rightLeaf)
		if ref := parents[best]; ref.node >= 0 {
			if ref.left {
				t.Left[ref.node] = node
			} else {
				t.Right[ref.node] = node
			}
		}
		parents[best] = leafRef{node: node, left: true}
		parents = append(parents, leafRef{node: node, left: false})

		left := newLeaf(s.left, grad, hess)
		right := newLeaf(s.right, grad, hess)
		leaves[best] = left
		leaves = append(leaves, right)
		left.split = bestSplit(X, grad, hess, left, p)
		right.split = bestSplit(X, grad, hess, right, p)
	}

	t.LeafValue = make([]float64, len(leaves))
	for i, l := range leaves {
		t.LeafValue[i] = leafOutput(l.sumG, l.sumH, p)
	}
	return t
}

func newLeaf(rows []int, grad, hess []float64) *leafState {
	l := &leafState{rows: rows}
	for _, r := range rows {
		l.sumG += grad[r]
		l.sumH += hess[r]
	}
	return l
}

func leafOutput(sumG, sumH float64, p Params) float64 {
	denom := sumH + p.LambdaL2
	if denom < p.MinSumHessian {
		return 0
	}
	return -sumG / denom * p.LearningRate
}

func splitScore(g, h, lambda float64) float64 {
	return g * g / (h + lambda)
}

// bestSplit scans every feature for the threshold with the largest positive gain. Ties
// keep the lowest feature index and the smallest threshold.
func bestSplit(X [][]float64, grad, hess []float64, leaf *leafState, p Params) *splitCandidate {
	n := len(leaf.rows)
	if n < 2*p.MinDataInLeaf {
		return nil
	}
	parentScore := splitScore(leaf.sumG, leaf.sumH, p.LambdaL2)
	if leaf.sumH+p.LambdaL2 <= 0 {
		return nil
	}

	var best *splitCandidate
	sorted := make([]int, n)
	numFeatures := len(X[leaf.rows[0]])
	for f := 0; f < numFeatures; f++ {
		copy(sorted, leaf.rows)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X[sorted[a]][f] < X[sorted[b]][f]
		})

		var gl, hl float64
		for k := 0; k < n-1; k++ {
			r := sorted[k]
			gl += grad[r]
			hl += hess[r]
			v, next := X[r][f], X[sorted[k+1]][f]
			if v == next {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < p.MinDataInLeaf || nr < p.MinDataInLeaf {
				continue
			}
			gr, hr := leaf.sumG-gl, leaf.sumH-hl
			if hl < p.MinSumHessian || hr < p.MinSumHessian {
				continue
			}
			gain := splitScore(gl, hl, p.LambdaL2) + splitScore(gr, hr, p.LambdaL2) - parentScore
			if gain <= 1e-12 || (best != nil && gain <= best.gain) {
				continue
			}
			threshold := v + (next-v)/2
			if threshold >= next {
				threshold = v
			}
			best = &splitCandidate{feature: f, threshold: threshold, gain: gain}
		}
	}
	if best == nil {
		return nil
	}

	for _, r := range leaf.rows {
		if X[r][best.feature] <= best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	return best
}
