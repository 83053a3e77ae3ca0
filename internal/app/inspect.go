package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/kidnapped/internal/adapters/codec"
	"github.com/okian/kidnapped/internal/domain/episode"
)

// InspectReport summarizes a saved dataset.
type InspectReport struct {
	Dataset     *episode.Dataset
	Episodes    int
	Peers       int
	Helpful     int
	Distractors int
	// Problems lists invariant violations; a clean dataset has none.
	Problems []error
}

// Inspect loads the dataset at path and checks its invariants. Violations
// are reported, not returned as errors; only unreadable documents fail.
func Inspect(_ context.Context, path string) (*InspectReport, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	ds, err := codec.Load(expanded)
	if err != nil {
		return nil, err
	}

	r := &InspectReport{Dataset: ds, Episodes: ds.Len()}
	for i := range ds.Episodes {
		ep := &ds.Episodes[i]
		r.Peers += len(ep.Peers)
		r.Helpful += ep.NumHelpful()
		r.Distractors += ep.Distractors()
		if err := ep.Validate(); err != nil {
			r.Problems = append(r.Problems, err)
		}
		if ep.SequenceName != ds.SequenceName {
			r.Problems = append(r.Problems, fmt.Errorf("episode %d: sequence %q differs from dataset %q",
				ep.EpisodeID, ep.SequenceName, ds.SequenceName))
		}
	}
	if err := ds.CheckSequentialIDs(); err != nil {
		r.Problems = append(r.Problems, err)
	}
	return r, nil
}

// Err joins every problem into one error, or nil.
func (r *InspectReport) Err() error {
	return errors.Join(r.Problems...)
}
