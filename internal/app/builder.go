// Package service wires the benchmark config, pair source, peer index and
// sampler into the build, evaluate and inspect operations.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/kidnapped/internal/adapters/pairsfile"
	"github.com/okian/kidnapped/internal/config"
	"github.com/okian/kidnapped/internal/domain/episode"
	"github.com/okian/kidnapped/internal/domain/pairs"
	"github.com/okian/kidnapped/internal/domain/peer"
	"github.com/okian/kidnapped/internal/domain/sampling"
	"github.com/okian/kidnapped/pkg/logger"
	"github.com/okian/kidnapped/pkg/metrics"
)

// Default build configuration constants.
const (
	defaultDistractorPeers = 4
)

// BuildRequest carries the inputs of one build.
type BuildRequest struct {
	// ConfigPath is the benchmark YAML document.
	ConfigPath string
	// ImagesRoot is the directory relative image references resolve against.
	ImagesRoot string
	// MaxEpisodes caps the output; 0 means no cap.
	MaxEpisodes        int
	NumDistractorPeers int
	Seed               int64
	// PositiveOnly skips pairs labeled 0.
	PositiveOnly bool
}

// NewBuildRequest returns a request with the default sampling settings.
func NewBuildRequest(configPath, imagesRoot string) BuildRequest {
	return BuildRequest{
		ConfigPath:         configPath,
		ImagesRoot:         imagesRoot,
		NumDistractorPeers: defaultDistractorPeers,
		PositiveOnly:       true,
	}
}

// PairSourceFunc returns the pair source for a loaded benchmark.
type PairSourceFunc func(b *config.Benchmark) pairs.Source

// Builder turns a benchmark into an episode dataset.
type Builder struct {
	pairSource PairSourceFunc
	logger     logger.Logger
}

// BuilderOption applies a configuration option to the Builder.
type BuilderOption func(*Builder)

// WithPairSource replaces the default pair list reader.
func WithPairSource(fn PairSourceFunc) BuilderOption {
	return func(b *Builder) {
		if fn != nil {
			b.pairSource = fn
		}
	}
}

// WithBuilderLogger sets a custom logger for the builder.
func WithBuilderLogger(l logger.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder constructs a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		pairSource: func(bench *config.Benchmark) pairs.Source {
			return pairsfile.New(bench.Data.PairsInfo)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("builder")
	}
	return b
}

// Build loads the benchmark, indexes every referenced image by peer and
// samples one episode per eligible pair.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*episode.Dataset, error) {
	start := time.Now()
	runID := uuid.NewString()

	root, err := resolveRoot(req.ImagesRoot)
	if err != nil {
		return nil, err
	}
	configPath, err := expandHome(req.ConfigPath)
	if err != nil {
		return nil, err
	}

	bench, err := config.LoadBenchmark(ctx, configPath)
	if err != nil {
		return nil, err
	}
	sequence := bench.SequenceName()

	in, err := b.pairSource(bench).Pairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}

	resolved, index := indexPairs(root, in)
	metrics.UpdatePeerIndex(len(index), index.Images())

	b.logger.Info(ctx, "indexed benchmark images",
		logger.String("run_id", runID),
		logger.String("sequence", sequence),
		logger.Int("pairs", len(in)),
		logger.Int("peers", len(index)),
		logger.Int("images", index.Images()),
	)

	sampler := sampling.New(index,
		sampling.WithDistractorPeers(req.NumDistractorPeers),
		sampling.WithPositiveOnly(req.PositiveOnly),
		sampling.WithSeed(req.Seed),
		sampling.WithMaxEpisodes(req.MaxEpisodes),
		sampling.WithSequenceName(sequence),
		sampling.WithLogger(b.logger.Named("sampler")),
	)
	episodes, err := sampler.Sample(ctx, resolved)
	if err != nil {
		return nil, err
	}

	ds := &episode.Dataset{SequenceName: sequence, Episodes: episodes}

	elapsed := time.Since(start)
	metrics.RecordBuildDuration(elapsed.Seconds())
	b.logger.Info(ctx, "built episodes",
		logger.String("run_id", runID),
		logger.String("sequence", sequence),
		logger.Int("episodes", ds.Len()),
		logger.Int64("seed", req.Seed),
		logger.Int("distractor_peers", req.NumDistractorPeers),
		logger.String("elapsed", elapsed.String()),
	)

	return ds, nil
}

// indexPairs resolves every pair reference against root and builds the peer
// index over the distinct references, visited in sorted order. References
// that differ only in spelling ("a/1.png", "./a/1.png") count once.
func indexPairs(root string, in []pairs.Pair) ([]pairs.Pair, peer.Index) {
	refs := make(map[string]struct{}, 2*len(in))
	for _, p := range in {
		refs[peer.CleanPath(p.Query)] = struct{}{}
		refs[peer.CleanPath(p.Peer)] = struct{}{}
	}
	sorted := make([]string, 0, len(refs))
	for r := range refs {
		sorted = append(sorted, r)
	}
	peer.SortPaths(sorted)

	paths := make([]string, len(sorted))
	for i, r := range sorted {
		paths[i] = resolveImage(root, r)
	}

	resolved := make([]pairs.Pair, len(in))
	for i, p := range in {
		resolved[i] = pairs.Pair{
			Query: resolveImage(root, p.Query),
			Peer:  resolveImage(root, p.Peer),
			Label: p.Label,
		}
	}

	return resolved, peer.BuildIndex(paths)
}
