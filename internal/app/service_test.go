package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/kidnapped/internal/adapters/codec"
	"github.com/okian/kidnapped/internal/adapters/matcher"
	service "github.com/okian/kidnapped/internal/app"
	"github.com/okian/kidnapped/internal/config"
	"github.com/okian/kidnapped/internal/domain/episode"
	"github.com/okian/kidnapped/internal/domain/pairs"
	"github.com/okian/kidnapped/internal/domain/peer"
	"github.com/okian/kidnapped/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	// oracle scores pairs whose peer image sits under a "match" directory high
	if err := matcher.Register("oracle", func(matcher.Params) (matcher.Matcher, error) {
		return matcher.Func(func(_ context.Context, _, img1 string) (matcher.Result, error) {
			if strings.Contains(img1, "/match/") {
				return matcher.Result{NumInliers: 100}, nil
			}
			return matcher.Result{NumInliers: 1}, nil
		}), nil
	}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const pairList = `# query peer label
query/000.png robot0/000.png 1
query/001.png robot1/000.png 0
query/002.png robot1/001.png 1
query/003.png robot2/000.png 1
query/004.png robot3/000.png 1
`

// fixture writes a benchmark with its pair list under a fresh directory and
// returns the config path and images root.
func fixture(t *testing.T, pairsText, extraYAML string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "images")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pairs.txt"), []byte(pairsText), 0o600); err != nil {
		t.Fatal(err)
	}
	doc := "data:\n  name: day\n  pairs_info: pairs.txt\n  image_dir: images\n" + extraYAML
	cfg := filepath.Join(dir, "bench.yaml")
	if err := os.WriteFile(cfg, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfg, root
}

func TestBuilder(t *testing.T) {
	Convey("Given a benchmark with five pairs across four peers", t, func() {
		ctx := context.Background()
		cfg, root := fixture(t, pairList, "")
		realRoot, err := filepath.EvalSymlinks(root)
		So(err, ShouldBeNil)
		b := service.NewBuilder()

		Convey("When building with defaults", func() {
			ds, err := b.Build(ctx, service.NewBuildRequest(cfg, root))
			So(err, ShouldBeNil)

			Convey("Then one episode exists per positive pair", func() {
				So(ds.SequenceName, ShouldEqual, "day")
				So(ds.Len(), ShouldEqual, 4)
				So(ds.CheckSequentialIDs(), ShouldBeNil)
				So(ds.Validate(), ShouldBeNil)
			})

			Convey("Then references are resolved under the images root", func() {
				ep := ds.Episodes[0]
				So(ep.QueryImage, ShouldEqual, filepath.Join(realRoot, "query/000.png"))
				So(ep.Peers[0], ShouldResemble, episode.PeerView{
					PeerID:    peer.DeriveID("robot0"),
					ImagePath: filepath.Join(realRoot, "robot0/000.png"),
					IsHelpful: true,
				})
			})

			Convey("Then every other peer appears once as a distractor", func() {
				for _, ep := range ds.Episodes {
					// robot0..3 plus the query directory make five peers
					So(ep.Distractors(), ShouldEqual, 4)
					So(ep.NumHelpful(), ShouldEqual, 1)
				}
			})

			Convey("Then the original pair index is kept in metadata", func() {
				So(ds.Episodes[1].Metadata["orig_index"], ShouldEqual, int64(2))
			})

			Convey("Then the dataset survives a save and load", func() {
				out := filepath.Join(t.TempDir(), "out", "episodes.json")
				So(codec.Save(ctx, out, ds), ShouldBeNil)
				got, err := codec.Load(out)
				So(err, ShouldBeNil)
				So(cmp.Diff(ds, got), ShouldBeEmpty)
			})
		})

		Convey("When building twice with the same seed", func() {
			req := service.NewBuildRequest(cfg, root)
			req.NumDistractorPeers = 2
			req.Seed = 11
			a, err := b.Build(ctx, req)
			So(err, ShouldBeNil)
			bb, err := b.Build(ctx, req)
			So(err, ShouldBeNil)

			Convey("Then the datasets are identical", func() {
				So(cmp.Diff(a, bb), ShouldBeEmpty)
				So(a.Episodes[0].Distractors(), ShouldEqual, 2)
			})
		})

		Convey("When negatives are included and the episode count is capped", func() {
			req := service.NewBuildRequest(cfg, root)
			req.PositiveOnly = false
			req.MaxEpisodes = 3
			ds, err := b.Build(ctx, req)

			Convey("Then the negative pair becomes an episode without a helpful view", func() {
				So(err, ShouldBeNil)
				So(ds.Len(), ShouldEqual, 3)
				So(ds.Episodes[1].NumHelpful(), ShouldEqual, 0)
				So(ds.Episodes[1].Metadata["label"], ShouldEqual, int64(0))
			})
		})

		Convey("When the images root does not exist", func() {
			_, err := b.Build(ctx, service.NewBuildRequest(cfg, filepath.Join(root, "missing")))

			Convey("Then a path resolution error is returned", func() {
				So(errors.Is(err, service.ErrPathResolution), ShouldBeTrue)
			})
		})

		Convey("When the config does not exist", func() {
			_, err := b.Build(ctx, service.NewBuildRequest(cfg+".missing", root))

			Convey("Then a configuration error is returned", func() {
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})

		Convey("When the pair source is replaced", func() {
			src := pairs.Static{{Query: "/abs/q.png", Peer: "robot9/x.png", Label: 1}}
			custom := service.NewBuilder(service.WithPairSource(func(*config.Benchmark) pairs.Source { return src }))
			ds, err := custom.Build(ctx, service.NewBuildRequest(cfg, root))

			Convey("Then absolute references are kept as given", func() {
				So(err, ShouldBeNil)
				So(ds.Episodes[0].QueryImage, ShouldEqual, "/abs/q.png")
				So(ds.Episodes[0].Peers[0].ImagePath, ShouldEqual, filepath.Join(realRoot, "robot9/x.png"))
			})
		})
	})

	Convey("Given a pair list with a label outside {0,1}", t, func() {
		cfg, root := fixture(t, "q/0.png p/0.png 3\n", "")

		Convey("When building", func() {
			_, err := service.NewBuilder().Build(context.Background(), service.NewBuildRequest(cfg, root))

			Convey("Then a data integrity error is returned", func() {
				So(errors.Is(err, pairs.ErrDataIntegrity), ShouldBeTrue)
			})
		})
	})
}

const oraclePairs = `query/0.png match/0.png 1
query/1.png other/0.png 0
query/2.png match/1.png 1
query/3.png other/1.png 0
`

func TestEvaluator(t *testing.T) {
	Convey("Given a benchmark scored by an oracle matcher", t, func() {
		ctx := context.Background()
		logDir := t.TempDir()
		expLog := filepath.Join(logDir, "results", "day.log")
		cfg, _ := fixture(t, oraclePairs, "matcher:\n  - oracle\nexp_log: "+expLog+"\n")
		bench, err := config.LoadBenchmark(ctx, cfg)
		So(err, ShouldBeNil)
		e := service.NewEvaluator(service.WithWorkerCount(2), service.WithQueueSize(2))

		Convey("When evaluating", func() {
			rows, err := e.Evaluate(ctx, bench, "")
			So(err, ShouldBeNil)

			Convey("Then the oracle ranks perfectly", func() {
				So(rows, ShouldResemble, []service.EvalRow{{Matcher: "oracle", AveragePrecision: 1, MaxRecall: 1}})
			})

			Convey("Then the results log has a header and one row", func() {
				data, err := os.ReadFile(expLog)
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(string(data)), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldEqual, "| Matcher | mAP | Max Recall@1.0 |")
				So(lines[1], ShouldEqual, strings.Repeat("-", len(lines[0])))
				So(lines[2], ShouldEqual, "| oracle | 1.0 | 1.0 |")
			})

			Convey("Then a second run appends without a second header", func() {
				_, err := e.Evaluate(ctx, bench, "")
				So(err, ShouldBeNil)
				data, err := os.ReadFile(expLog)
				So(err, ShouldBeNil)
				So(strings.Count(string(data), "| Matcher |"), ShouldEqual, 1)
				So(strings.Count(string(data), "| oracle |"), ShouldEqual, 2)
			})
		})

		Convey("When a matcher is not registered", func() {
			bench.Matchers = []config.MatcherEntry{{Name: "superpoint-lightglue"}}
			_, err := e.Evaluate(ctx, bench, "")

			Convey("Then ErrUnknownMatcher is returned", func() {
				So(errors.Is(err, matcher.ErrUnknownMatcher), ShouldBeTrue)
			})
		})

		Convey("When no matchers are configured", func() {
			bench.Matchers = nil
			_, err := e.Evaluate(ctx, bench, "")

			Convey("Then ErrNoMatchers is returned", func() {
				So(errors.Is(err, service.ErrNoMatchers), ShouldBeTrue)
			})
		})
	})
}

func TestInspect(t *testing.T) {
	Convey("Given a saved dataset", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "episodes.json")
		ds := &episode.Dataset{
			SequenceName: "day",
			Episodes: []episode.Episode{
				{EpisodeID: 0, SequenceName: "day", QueryImage: "/q/0.png", Peers: []episode.PeerView{
					{PeerID: 1, ImagePath: "/a/0.png", IsHelpful: true},
					{PeerID: 2, ImagePath: "/b/0.png"},
				}},
			},
		}

		Convey("When it is clean", func() {
			So(codec.Save(ctx, path, ds), ShouldBeNil)
			r, err := service.Inspect(ctx, path)

			Convey("Then totals are reported with no problems", func() {
				So(err, ShouldBeNil)
				So(r.Episodes, ShouldEqual, 1)
				So(r.Peers, ShouldEqual, 2)
				So(r.Helpful, ShouldEqual, 1)
				So(r.Distractors, ShouldEqual, 1)
				So(r.Err(), ShouldBeNil)
			})
		})

		Convey("When it repeats a path and skips an id", func() {
			ds.Episodes[0].EpisodeID = 4
			ds.Episodes[0].Peers[1].ImagePath = "/a/0.png"
			So(codec.Save(ctx, path, ds), ShouldBeNil)
			r, err := service.Inspect(ctx, path)

			Convey("Then both problems are reported", func() {
				So(err, ShouldBeNil)
				So(r.Problems, ShouldHaveLength, 2)
				So(errors.Is(r.Err(), episode.ErrDuplicatePath), ShouldBeTrue)
				So(errors.Is(r.Err(), episode.ErrNonSequentialIDs), ShouldBeTrue)
			})
		})
	})
}
