package ranking

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNDCGAtK(t *testing.T) {
	Convey("Given grouped labels and predictions", t, func() {
		labels := []float64{3, 2, 1, 0, 5, 4}
		groups := []int{4, 2}

		Convey("When the predicted order matches the label order", func() {
			preds := []float64{0.9, 0.8, 0.7, 0.1, 2, 1}
			score, err := NDCGAtK(labels, preds, groups, 10)

			Convey("Then NDCG is exactly 1", func() {
				So(err, ShouldBeNil)
				So(score, ShouldAlmostEqual, 1.0, 1e-12)
			})
		})

		Convey("When the predicted order is reversed", func() {
			preds := []float64{0.1, 0.2, 0.3, 0.4, 1, 2}
			score, err := NDCGAtK(labels, preds, groups, 10)

			Convey("Then NDCG stays inside (0, 1)", func() {
				So(err, ShouldBeNil)
				So(score, ShouldBeGreaterThan, 0)
				So(score, ShouldBeLessThan, 1)
			})
		})

		Convey("When a group has only zero labels", func() {
			score, err := NDCGAtK([]float64{0, 0, 2, 1}, []float64{1, 2, 1, 0}, []int{2, 2}, 10)

			Convey("Then that group contributes 0 to the mean", func() {
				So(err, ShouldBeNil)
				So(score, ShouldAlmostEqual, 0.5, 1e-12)
			})
		})

		Convey("When predictions tie", func() {
			score, err := NDCGAtK([]float64{0, 1}, []float64{1, 1}, []int{2}, 10)

			Convey("Then row order breaks the tie", func() {
				So(err, ShouldBeNil)
				want := (1 / math.Log2(3)) / 1
				So(score, ShouldAlmostEqual, want, 1e-12)
			})
		})

		Convey("When k truncates the list", func() {
			score, err := NDCGAtK([]float64{0, 0, 3}, []float64{3, 2, 1}, []int{3}, 2)

			Convey("Then items below k earn nothing", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When the input is empty or inconsistent", func() {
			_, err := NDCGAtK(nil, nil, nil, 10)
			So(err, ShouldEqual, ErrEmptyDataset)

			_, err = NDCGAtK([]float64{1, 2}, []float64{1}, []int{2}, 10)
			So(err, ShouldNotBeNil)

			_, err = NDCGAtK([]float64{1, 2}, []float64{1, 2}, []int{1}, 10)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGroupsFromKeys(t *testing.T) {
	Convey("Given senior ids in row order", t, func() {
		groups := GroupsFromKeys([]string{"a", "a", "b", "c", "c", "c", "a"})

		Convey("Then groups are contiguous run lengths", func() {
			So(groups, ShouldResemble, []int{2, 1, 3, 1})
		})
	})
}
