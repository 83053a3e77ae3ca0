package scoring

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const eps = 1e-9

func TestNormalize(t *testing.T) {
	Convey("Given raw inlier counts", t, func() {
		Convey("When they span a range", func() {
			got := Normalize([]float64{10, 30, 20, 110})

			Convey("Then they are scaled to [0,1]", func() {
				So(got, ShouldResemble, []float64{0, 0.2, 0.1, 1})
			})
		})

		Convey("When every count is equal", func() {
			got := Normalize([]float64{7, 7, 7})

			Convey("Then all scores are zero", func() {
				So(got, ShouldResemble, []float64{0, 0, 0})
			})
		})

		Convey("When the input is empty", func() {
			Convey("Then the output is empty", func() {
				So(Normalize(nil), ShouldBeEmpty)
			})
		})
	})
}

func TestPrecisionRecall(t *testing.T) {
	Convey("Given four scored pairs with two positives", t, func() {
		labels := []int{0, 0, 1, 1}
		scores := []float64{0.1, 0.4, 0.35, 0.8}

		Convey("When the curve is computed", func() {
			c, err := PrecisionRecall(labels, scores)
			So(err, ShouldBeNil)

			Convey("Then points are ordered by increasing threshold and closed at (1, 0)", func() {
				want := []float64{0.5, 2.0 / 3.0, 0.5, 1, 1}
				So(c.Precision, ShouldHaveLength, len(want))
				for i := range want {
					So(c.Precision[i], ShouldAlmostEqual, want[i], eps)
				}
				So(c.Recall, ShouldResemble, []float64{1, 1, 0.5, 0.5, 0})
				So(c.Thresholds, ShouldResemble, []float64{0.1, 0.35, 0.4, 0.8})
			})

			Convey("Then average precision is the weighted recall steps", func() {
				So(c.AveragePrecision(), ShouldAlmostEqual, 0.5+1.0/3.0, eps)
			})

			Convey("Then max recall at perfect precision is one half", func() {
				So(c.MaxRecallAtPerfectPrecision(), ShouldEqual, 0.5)
			})
		})
	})

	Convey("Given tied scores", t, func() {
		c, err := PrecisionRecall([]int{1, 0, 1}, []float64{0.5, 0.5, 0.9})
		So(err, ShouldBeNil)

		Convey("Then ties collapse into one threshold", func() {
			So(c.Thresholds, ShouldResemble, []float64{0.5, 0.9})
			So(c.Recall, ShouldResemble, []float64{1, 0.5, 0})
		})
	})

	Convey("Given invalid input", t, func() {
		_, err := PrecisionRecall(nil, nil)
		So(errors.Is(err, ErrEmptyInput), ShouldBeTrue)

		_, err = PrecisionRecall([]int{1}, []float64{0.1, 0.2})
		So(errors.Is(err, ErrLengthMismatch), ShouldBeTrue)

		_, err = PrecisionRecall([]int{1, 2}, []float64{0.1, 0.2})
		So(errors.Is(err, ErrInvalidLabel), ShouldBeTrue)
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given a matcher that ranks every positive above every negative", t, func() {
		s, err := Evaluate([]int{1, 0, 1, 0}, []float64{120, 3, 85, 10})

		Convey("Then both metrics are perfect", func() {
			So(err, ShouldBeNil)
			So(s.AveragePrecision, ShouldAlmostEqual, 1, eps)
			So(s.MaxRecall, ShouldEqual, 1)
		})
	})

	Convey("Given a matcher whose top score is a negative", t, func() {
		s, err := Evaluate([]int{0, 1, 1}, []float64{50, 40, 30})

		Convey("Then no recall is reached at perfect precision", func() {
			So(err, ShouldBeNil)
			So(s.MaxRecall, ShouldEqual, 0)
			So(s.AveragePrecision, ShouldBeLessThan, 1)
		})
	})

	Convey("Given only negative labels", t, func() {
		s, err := Evaluate([]int{0, 0}, []float64{1, 2})

		Convey("Then average precision is zero", func() {
			So(err, ShouldBeNil)
			So(s.AveragePrecision, ShouldEqual, 0)
		})
	})

	Convey("Given constant scores", t, func() {
		s, err := AveragePrecision([]int{1, 0, 1, 0}, Normalize([]float64{5, 5, 5, 5}))

		Convey("Then average precision equals the positive rate", func() {
			So(err, ShouldBeNil)
			So(s, ShouldAlmostEqual, 0.5, eps)
		})
	})
}
