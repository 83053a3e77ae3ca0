// Package scoring ranks matcher scores against verification labels.
//
// The curve follows the usual information-retrieval convention: precision
// and recall are reported for every distinct score threshold from the
// highest to the lowest, then a final (precision 1, recall 0) point closes
// the curve.
package scoring

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Sentinel kinds for scoring errors.
var (
	ErrEmptyInput     = errors.New("no scores to rank")
	ErrLengthMismatch = errors.New("labels and scores differ in length")
	ErrInvalidLabel   = errors.New("label outside {0,1}")
)

// Curve is a precision-recall curve ordered by increasing threshold, with
// the closing (1, 0) point appended. Thresholds has one fewer entry than
// Precision and Recall.
type Curve struct {
	Precision  []float64
	Recall     []float64
	Thresholds []float64
}

// Summary holds the ranking metrics reported per matcher.
type Summary struct {
	AveragePrecision float64
	MaxRecall        float64
}

// Normalize rescales scores to [0,1] with min-max scaling. A constant input
// maps to all zeros.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := floats.Min(scores), floats.Max(scores)
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}

// PrecisionRecall computes the precision-recall curve of scores against
// binary labels. With no positive labels recall is reported as 1 at every
// threshold.
func PrecisionRecall(labels []int, scores []float64) (Curve, error) {
	if err := check(labels, scores); err != nil {
		return Curve{}, err
	}

	// order by descending score
	sorted := append([]float64(nil), scores...)
	order := make([]int, len(scores))
	floats.Argsort(sorted, order)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}

	// cumulative true and false positives at each distinct threshold
	var tps, fps, thresholds []float64
	var tp float64
	for i, idx := range order {
		tp += float64(labels[idx])
		if i+1 < len(order) && sorted[i+1] == sorted[i] {
			continue
		}
		tps = append(tps, tp)
		fps = append(fps, float64(i+1)-tp)
		thresholds = append(thresholds, sorted[i])
	}

	n := len(tps)
	totalPos := tps[n-1]
	c := Curve{
		Precision:  make([]float64, n+1),
		Recall:     make([]float64, n+1),
		Thresholds: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		// reverse so thresholds increase
		r := n - 1 - i
		c.Precision[r] = tps[i] / (tps[i] + fps[i])
		if totalPos == 0 {
			c.Recall[r] = 1
		} else {
			c.Recall[r] = tps[i] / totalPos
		}
		c.Thresholds[r] = thresholds[i]
	}
	c.Precision[n] = 1
	c.Recall[n] = 0

	return c, nil
}

// AveragePrecision summarizes the curve as the precision-weighted sum of
// recall increments. It is 0 when there are no positive labels.
func AveragePrecision(labels []int, scores []float64) (float64, error) {
	c, err := PrecisionRecall(labels, scores)
	if err != nil {
		return 0, err
	}
	return c.AveragePrecision(), nil
}

// AveragePrecision returns the step-wise area under the curve.
func (c Curve) AveragePrecision() float64 {
	n := len(c.Recall)
	if n < 2 {
		return 0
	}
	steps := make([]float64, n-1)
	floats.SubTo(steps, c.Recall[:n-1], c.Recall[1:])
	return floats.Dot(steps, c.Precision[:n-1])
}

// MaxRecallAtPerfectPrecision returns the highest recall among points
// whose precision is exactly 1.
func (c Curve) MaxRecallAtPerfectPrecision() float64 {
	var best float64
	for i, p := range c.Precision {
		if p == 1 && c.Recall[i] > best {
			best = c.Recall[i]
		}
	}
	return best
}

// Evaluate normalizes scores and returns both ranking metrics.
func Evaluate(labels []int, scores []float64) (Summary, error) {
	c, err := PrecisionRecall(labels, Normalize(scores))
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		AveragePrecision: c.AveragePrecision(),
		MaxRecall:        c.MaxRecallAtPerfectPrecision(),
	}, nil
}

func check(labels []int, scores []float64) error {
	if len(scores) == 0 {
		return ErrEmptyInput
	}
	if len(labels) != len(scores) {
		return fmt.Errorf("%w: %d labels, %d scores", ErrLengthMismatch, len(labels), len(scores))
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return fmt.Errorf("%w: index %d has %d", ErrInvalidLabel, i, l)
		}
	}
	return nil
}
