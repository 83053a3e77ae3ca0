// Package episode contains the kidnapped-robot data model passed between layers.
package episode

import (
	"errors"
	"fmt"

	"github.com/okian/kidnapped/internal/domain/peer"
)

// Sentinel kinds for model invariant violations.
var (
	ErrDuplicatePath    = errors.New("duplicate peer image path")
	ErrMultipleHelpful  = errors.New("more than one helpful peer view")
	ErrNonSequentialIDs = errors.New("episode ids are not sequential")
)

// Metadata is an opaque pass-through mapping. A nil Metadata means absent.
type Metadata map[string]any

// PeerView is one image belonging to one peer robot.
type PeerView struct {
	PeerID    peer.ID
	ImagePath string
	// IsHelpful marks the view that verifies against the query in the source label.
	IsHelpful bool
}

// Episode is one kidnapped-robot trial: a query image and candidate peer views.
// The helpful view, when present, comes first.
type Episode struct {
	EpisodeID    int
	SequenceName string
	QueryImage   string
	Peers        []PeerView
	Metadata     Metadata
}

// NumHelpful returns how many peer views are marked helpful.
func (e *Episode) NumHelpful() int {
	n := 0
	for _, p := range e.Peers {
		if p.IsHelpful {
			n++
		}
	}
	return n
}

// Distractors returns the number of peer views after the paired one.
func (e *Episode) Distractors() int {
	if len(e.Peers) == 0 {
		return 0
	}
	return len(e.Peers) - 1
}

// Validate checks that no image path repeats and at most one view is helpful.
func (e *Episode) Validate() error {
	seen := make(map[string]struct{}, len(e.Peers))
	for _, p := range e.Peers {
		if _, dup := seen[p.ImagePath]; dup {
			return fmt.Errorf("episode %d: %w: %s", e.EpisodeID, ErrDuplicatePath, p.ImagePath)
		}
		seen[p.ImagePath] = struct{}{}
	}
	if n := e.NumHelpful(); n > 1 {
		return fmt.Errorf("episode %d: %w: %d", e.EpisodeID, ErrMultipleHelpful, n)
	}
	return nil
}

// Dataset owns an ordered collection of episodes from one sequence.
type Dataset struct {
	SequenceName string
	Episodes     []Episode
}

// Len returns the number of episodes.
func (d *Dataset) Len() int {
	return len(d.Episodes)
}

// Validate runs Episode.Validate on every episode.
func (d *Dataset) Validate() error {
	for i := range d.Episodes {
		if err := d.Episodes[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CheckSequentialIDs reports whether episode ids are exactly 0..n-1 in order.
// Sampler output always satisfies this; loaded datasets may not.
func (d *Dataset) CheckSequentialIDs() error {
	for i := range d.Episodes {
		if d.Episodes[i].EpisodeID != i {
			return fmt.Errorf("%w: position %d has id %d", ErrNonSequentialIDs, i, d.Episodes[i].EpisodeID)
		}
	}
	return nil
}
