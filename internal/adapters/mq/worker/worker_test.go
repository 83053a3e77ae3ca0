package worker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/kidnapped/internal/adapters/matcher"
	queue "github.com/okian/kidnapped/internal/adapters/mq/queue"
	worker "github.com/okian/kidnapped/internal/adapters/mq/worker"
	logging "github.com/okian/kidnapped/pkg/logger"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

// inlierMatcher returns the length of img1's base name as the inlier count
// and fails for paths containing "bad".
type inlierMatcher struct {
	calls atomic.Int64
	delay time.Duration
}

func (m *inlierMatcher) Match(ctx context.Context, img0, img1 string) (matcher.Result, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if strings.Contains(img1, "bad") {
		return matcher.Result{}, fmt.Errorf("%w: cannot read %s", matcher.ErrMatchFailed, img1)
	}
	return matcher.Result{NumInliers: len(img1)}, nil
}

func jobs(n int) []queue.Job {
	out := make([]queue.Job, n)
	for i := range out {
		out[i] = queue.Job{Index: i, Img0: "q.png", Img1: strings.Repeat("x", i+1)}
	}
	return out
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		m := &inlierMatcher{}
		results := make(chan worker.Outcome, 10)

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, m, results,
				worker.WithName("test-worker"),
				worker.WithMatcherName("fake"),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, m, results)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And when a job is processed", func() {
				q.jobs <- queue.Job{Index: 3, Img0: "a.png", Img1: "abcd"}
				out := <-results

				convey.Convey("Then the outcome carries the index and inliers", func() {
					convey.So(out.Err, convey.ShouldBeNil)
					convey.So(out.Index, convey.ShouldEqual, 3)
					convey.So(out.Result.NumInliers, convey.ShouldEqual, 4)
				})
			})

			convey.Convey("And when matching fails", func() {
				q.jobs <- queue.Job{Index: 5, Img0: "a.png", Img1: "bad.png"}
				out := <-results

				convey.Convey("Then the outcome carries the wrapped error", func() {
					convey.So(errors.Is(out.Err, matcher.ErrMatchFailed), convey.ShouldBeTrue)
					convey.So(out.Err.Error(), convey.ShouldContainSubstring, "pair 5")
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := w.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q, m, results)
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			_ = q.Close()

			convey.Convey("Then the worker exits", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					convey.So("worker did not exit", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		_ = logging.Init()
		ctx := context.Background()

		convey.Convey("When creating a pool with a non-positive count", func() {
			pool := worker.NewPool(0, queue.NewInMemoryQueue(), &inlierMatcher{})

			convey.Convey("Then it defaults to at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When scoring many jobs with several workers", func() {
			m := &inlierMatcher{delay: time.Millisecond}
			in := jobs(40)
			got, err := worker.Score(ctx, m, in, 4, 8, worker.WithMatcherName("fake"))

			convey.Convey("Then results come back in job order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldHaveLength, 40)
				for i, r := range got {
					convey.So(r.NumInliers, convey.ShouldEqual, i+1)
				}
				convey.So(m.calls.Load(), convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When one job fails", func() {
			in := jobs(10)
			in[6].Img1 = "bad.png"
			got, err := worker.Score(ctx, &inlierMatcher{}, in, 2, 4)

			convey.Convey("Then the run fails with that pair's error", func() {
				convey.So(got, convey.ShouldBeNil)
				convey.So(errors.Is(err, matcher.ErrMatchFailed), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "pair 6")
			})
		})

		convey.Convey("When there are no jobs", func() {
			got, err := worker.Score(ctx, &inlierMatcher{}, nil, 2, 4)

			convey.Convey("Then an empty result is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the pool is started and shut down by hand", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))
			pool := worker.NewPool(2, q, &inlierMatcher{})
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			pool.Start(runCtx)

			for _, j := range jobs(3) {
				convey.So(q.Enqueue(runCtx, j), convey.ShouldBeNil)
			}
			got, err := pool.Collect(runCtx, 3)
			convey.So(err, convey.ShouldBeNil)

			err = pool.Shutdown(ctx)

			convey.Convey("Then collected results and shutdown succeed", func() {
				convey.So(got[2].NumInliers, convey.ShouldEqual, 3)
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
