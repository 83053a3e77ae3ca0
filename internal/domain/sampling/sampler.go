// Package sampling turns labeled pairs into kidnapped-robot episodes: the
// paired peer view plus distractor views drawn from other peers.
package sampling

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"github.com/okian/kidnapped/internal/domain/episode"
	"github.com/okian/kidnapped/internal/domain/pairs"
	"github.com/okian/kidnapped/internal/domain/peer"
	"github.com/okian/kidnapped/pkg/logger"
	"github.com/okian/kidnapped/pkg/metrics"
)

// Default sampling configuration constants.
const (
	defaultDistractorPeers = 4
	defaultSeed            = 0
)

// Metadata keys written on every sampled episode.
const (
	MetaLabel     = "label"
	MetaOrigIndex = "orig_index"
)

// Sampler builds episodes from labeled pairs against one peer index.
//
// The generator is seeded once in New and consumed in order across every
// episode and every Sample call, so the sequence of draws is part of the
// output. A Sampler must not be shared between goroutines.
type Sampler struct {
	index           peer.Index
	distractorPeers int
	positiveOnly    bool
	seed            int64
	maxEpisodes     int
	sequenceName    string
	identify        func(path string) peer.ID

	rng    *rand.Rand
	logger logger.Logger
}

// New creates a sampler over index.
func New(index peer.Index, opts ...Option) *Sampler {
	s := &Sampler{
		index:           index,
		distractorPeers: defaultDistractorPeers,
		positiveOnly:    true,
		seed:            defaultSeed,
		identify:        peer.IDOf,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("sampler")
	}
	s.rng = rand.New(rand.NewSource(s.seed)) //nolint:gosec // reproducible sampling, not security

	return s
}

// Sample builds one episode per eligible pair, in input order. Episode ids
// run 0..n-1 within the returned slice.
func (s *Sampler) Sample(ctx context.Context, in []pairs.Pair) ([]episode.Episode, error) {
	episodes := make([]episode.Episode, 0, len(in))

	for idx, pair := range in {
		if err := pairs.ValidateLabel(pair.Label); err != nil {
			return nil, fmt.Errorf("pair %d (%s, %s): %w", idx, pair.Query, pair.Peer, err)
		}
		if s.positiveOnly && !pair.Positive() {
			metrics.RecordPairSkipped("negative")
			continue
		}

		ep := s.buildEpisode(ctx, len(episodes), idx, pair)
		episodes = append(episodes, ep)
		metrics.RecordEpisodeBuilt(ep.Distractors())

		if s.maxEpisodes > 0 && len(episodes) >= s.maxEpisodes {
			s.logger.Debug(ctx, "episode cap reached",
				logger.Int("max_episodes", s.maxEpisodes),
				logger.Int("orig_index", idx),
			)
			break
		}
	}

	return episodes, nil
}

func (s *Sampler) buildEpisode(ctx context.Context, episodeID, origIndex int, pair pairs.Pair) episode.Episode {
	pair.Query = peer.CleanPath(pair.Query)
	pair.Peer = peer.CleanPath(pair.Peer)
	helpfulID := s.identify(pair.Peer)

	views := make([]episode.PeerView, 0, s.distractorPeers+1)
	views = append(views, episode.PeerView{
		PeerID:    helpfulID,
		ImagePath: pair.Peer,
		IsHelpful: pair.Label != pairs.LabelNegative,
	})
	used := map[string]struct{}{pair.Peer: {}}

	selected := s.index.Candidates(helpfulID)
	if len(selected) > s.distractorPeers {
		selected = s.drawPeers(selected, s.distractorPeers)
	}

	for _, id := range selected {
		free := make([]string, 0, len(s.index[id]))
		for _, p := range s.index[id] {
			if _, taken := used[p]; !taken {
				free = append(free, p)
			}
		}
		if len(free) == 0 {
			s.logger.Debug(ctx, "peer has no unused image, skipping",
				logger.Uint64("peer_id", uint64(id)),
				logger.Int("episode_id", episodeID),
			)
			continue
		}

		chosen := free[s.rng.Intn(len(free))]
		used[chosen] = struct{}{}
		views = append(views, episode.PeerView{PeerID: id, ImagePath: chosen})
	}

	if got := len(views) - 1; got < s.distractorPeers {
		metrics.RecordDistractorShortfall()
		s.logger.Debug(ctx, "episode has fewer distractors than requested",
			logger.Int("episode_id", episodeID),
			logger.Int("requested", s.distractorPeers),
			logger.Int("sampled", got),
		)
	}

	return episode.Episode{
		EpisodeID:    episodeID,
		SequenceName: s.sequenceName,
		QueryImage:   pair.Query,
		Peers:        views,
		Metadata: episode.Metadata{
			MetaLabel:     int64(pair.Label),
			MetaOrigIndex: int64(origIndex),
		},
	}
}

// drawPeers draws k distinct ids uniformly without replacement, in draw order.
func (s *Sampler) drawPeers(ids []peer.ID, k int) []peer.ID {
	pool := slices.Clone(ids)
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
