// Package pairs defines labeled image pairs and the source contract that yields them.
package pairs

import (
	"context"
	"errors"
	"fmt"
)

// ErrDataIntegrity marks pair data outside the expected shape, such as a
// label that is not a binary verification outcome.
var ErrDataIntegrity = errors.New("pair data integrity")

// Binary verification labels.
const (
	LabelNegative = 0
	LabelPositive = 1
)

// Pair is one labeled benchmark entry: does Peer geometrically verify Query?
type Pair struct {
	Query string
	Peer  string
	Label int
}

// Positive reports whether the pair is labeled as verifying.
func (p Pair) Positive() bool { return p.Label == LabelPositive }

// ValidateLabel rejects labels outside {0, 1}.
func ValidateLabel(label int) error {
	if label != LabelNegative && label != LabelPositive {
		return fmt.Errorf("%w: label %d outside {0,1}", ErrDataIntegrity, label)
	}
	return nil
}

// Source yields the labeled pairs of one benchmark sequence, in order.
type Source interface {
	Pairs(ctx context.Context) ([]Pair, error)
}

// Static is a Source over an in-memory slice.
type Static []Pair

// Pairs returns a copy of the slice after validating every label.
func (s Static) Pairs(_ context.Context) ([]Pair, error) {
	out := make([]Pair, len(s))
	for i, p := range s {
		if err := ValidateLabel(p.Label); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}
