package sampling

import (
	"github.com/okian/kidnapped/internal/domain/peer"
	"github.com/okian/kidnapped/pkg/logger"
)

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithDistractorPeers sets how many distractor peers each episode draws.
// Negative values are ignored.
func WithDistractorPeers(n int) Option {
	return func(s *Sampler) {
		if n >= 0 {
			s.distractorPeers = n
		}
	}
}

// WithPositiveOnly controls whether pairs labeled 0 are skipped.
func WithPositiveOnly(positiveOnly bool) Option {
	return func(s *Sampler) {
		s.positiveOnly = positiveOnly
	}
}

// WithSeed seeds the sampler's generator.
func WithSeed(seed int64) Option {
	return func(s *Sampler) {
		s.seed = seed
	}
}

// WithMaxEpisodes caps the number of episodes per Sample call; n <= 0 means no cap.
func WithMaxEpisodes(n int) Option {
	return func(s *Sampler) {
		s.maxEpisodes = n
	}
}

// WithSequenceName sets the sequence name stamped on every episode.
func WithSequenceName(name string) Option {
	return func(s *Sampler) {
		s.sequenceName = name
	}
}

// WithPeerIdentity replaces the path -> peer id derivation used for the
// helpful view. The default is peer.IDOf.
func WithPeerIdentity(fn func(path string) peer.ID) Option {
	return func(s *Sampler) {
		if fn != nil {
			s.identify = fn
		}
	}
}

// WithLogger sets a custom logger for the sampler.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}
