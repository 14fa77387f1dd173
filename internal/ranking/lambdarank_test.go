package ranking

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var testFeatures = []string{"signal", "noise_a", "noise_b"}

func noise(i int) float64 {
	return float64((i*7919)%101) / 101
}

// syntheticDataset builds groups of 8 rows whose label is recoverable from feature 0.
// Rows are stored in ascending label order so input order is a poor ranking.
func syntheticDataset(numGroups, offset int) Dataset {
	labels := []float64{0, 0, 1, 1, 2, 3, 4, 4}
	var d Dataset
	for g := 0; g < numGroups; g++ {
		for j, l := range labels {
			i := offset + g*len(labels) + j
			d.Features = append(d.Features, []float64{l + 0.05*noise(i), noise(i + 1), noise(i + 2)})
			d.Labels = append(d.Labels, l)
		}
		d.Groups = append(d.Groups, len(labels))
	}
	return d
}

func TestTrain(t *testing.T) {
	Convey("Given a learnable ranking problem", t, func() {
		train := syntheticDataset(20, 0)
		valid := syntheticDataset(5, 1000)
		params := DefaultParams()

		Convey("When a booster is trained with validation early stopping", func() {
			b, res, err := Train(context.Background(), testFeatures, train, valid, params)
			So(err, ShouldBeNil)

			Convey("Then it ranks the validation groups almost perfectly", func() {
				preds, err := b.PredictAll(valid.Features)
				So(err, ShouldBeNil)
				trained, err := NDCGAtK(valid.Labels, preds, valid.Groups, 10)
				So(err, ShouldBeNil)

				baseline, _ := NDCGAtK(valid.Labels, make([]float64, valid.Len()), valid.Groups, 10)
				So(trained, ShouldBeGreaterThan, baseline)
				So(trained, ShouldBeGreaterThan, 0.95)
				So(trained, ShouldAlmostEqual, res.BestScore, 1e-9)
			})

			Convey("Then the booster is truncated to the best iteration", func() {
				So(len(b.Trees), ShouldEqual, res.BestIteration)
				So(res.BestIteration, ShouldBeLessThanOrEqualTo, res.Rounds)
				So(len(res.ValidHistory), ShouldEqual, res.Rounds)
			})
		})

		Convey("When the same data is trained twice", func() {
			a, _, errA := Train(context.Background(), testFeatures, train, valid, params)
			b, _, errB := Train(context.Background(), testFeatures, train, valid, params)

			Convey("Then both models are byte-identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(bytes.Equal(Marshal(a), Marshal(b)), ShouldBeTrue)
			})
		})

		Convey("When the validation metric never improves", func() {
			flat := syntheticDataset(2, 500)
			for i := range flat.Labels {
				flat.Labels[i] = 1
			}
			params.EarlyStoppingRounds = 3
			b, res, err := Train(context.Background(), testFeatures, train, flat, params)

			Convey("Then training stops after the patience window", func() {
				So(err, ShouldBeNil)
				So(res.EarlyStopped, ShouldBeTrue)
				So(res.BestIteration, ShouldEqual, 1)
				So(res.Rounds, ShouldEqual, 4)
				So(len(b.Trees), ShouldEqual, 1)
			})
		})

		Convey("When no validation set is given", func() {
			params.NumRounds = 5
			b, res, err := Train(context.Background(), testFeatures, train, Dataset{}, params)

			Convey("Then every round is kept", func() {
				So(err, ShouldBeNil)
				So(res.EarlyStopped, ShouldBeFalse)
				So(len(b.Trees), ShouldEqual, res.Rounds)
				So(res.Rounds, ShouldBeLessThanOrEqualTo, 5)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, _, err := Train(ctx, testFeatures, train, valid, params)
			So(err, ShouldEqual, context.Canceled)
		})

		Convey("When the rows have the wrong width", func() {
			_, _, err := Train(context.Background(), []string{"only"}, train, valid, params)
			So(errors.Is(err, ErrFeatureCount), ShouldBeTrue)
		})
	})
}

func TestGrowTree_RespectsMinDataInLeaf(t *testing.T) {
	Convey("Given gradients that favour isolating one row", t, func() {
		X := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}}
		grad := []float64{-10, 1, 1, 1, 1, 1}
		hess := []float64{1, 1, 1, 1, 1, 1}
		p := DefaultParams()
		p.MinDataInLeaf = 3

		tree := growTree(X, grad, hess, []int{0, 1, 2, 3, 4, 5}, p)

		Convey("Then no leaf holds fewer rows than the minimum", func() {
			So(len(tree.SplitFeature), ShouldEqual, 1)
			So(tree.Threshold[0], ShouldEqual, 2.5)
			So(tree.Predict([]float64{0}), ShouldBeGreaterThan, tree.Predict([]float64{5}))
		})
	})
}
