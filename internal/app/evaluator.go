package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/okian/kidnapped/internal/adapters/matcher"
	"github.com/okian/kidnapped/internal/adapters/mq/queue"
	"github.com/okian/kidnapped/internal/adapters/mq/worker"
	"github.com/okian/kidnapped/internal/adapters/pairsfile"
	"github.com/okian/kidnapped/internal/config"
	"github.com/okian/kidnapped/internal/domain/scoring"
	"github.com/okian/kidnapped/pkg/logger"
	"github.com/okian/kidnapped/pkg/metrics"
)

// Default evaluation configuration constants.
const (
	defaultQueueSize = 1024
)

// Results log columns.
var resultColumns = []string{"Matcher", "mAP", "Max Recall@1.0"}

// EvalRow is one matcher's ranking metrics on a sequence.
type EvalRow struct {
	Matcher          string
	AveragePrecision float64
	MaxRecall        float64
}

// Evaluator scores every benchmark pair with each configured matcher.
type Evaluator struct {
	workerCount int
	queueSize   int
	logger      logger.Logger
}

// EvaluatorOption applies a configuration option to the Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWorkerCount sets the number of concurrent matcher workers.
func WithWorkerCount(count int) EvaluatorOption {
	return func(e *Evaluator) {
		if count > 0 {
			e.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the pair job queue.
func WithQueueSize(size int) EvaluatorOption {
	return func(e *Evaluator) {
		if size > 0 {
			e.queueSize = size
		}
	}
}

// WithEvaluatorLogger sets a custom logger for the evaluator.
func WithEvaluatorLogger(l logger.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("evaluator")
	}
	return e
}

// Evaluate runs every matcher of bench over its pairs, appends one row per
// matcher to the results log and returns the rows. imagesRoot overrides
// data.image_dir when non-empty.
func (e *Evaluator) Evaluate(ctx context.Context, bench *config.Benchmark, imagesRoot string) ([]EvalRow, error) {
	if len(bench.Matchers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchers, bench.Path)
	}

	root := imagesRoot
	if root == "" {
		root = bench.Data.ImageDir
	}
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	in, err := pairsfile.New(bench.Data.PairsInfo).Pairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}
	jobs := make([]queue.Job, len(in))
	labels := make([]int, len(in))
	for i, p := range in {
		jobs[i] = queue.Job{Index: i, Img0: resolveImage(root, p.Query), Img1: resolveImage(root, p.Peer)}
		labels[i] = p.Label
	}

	if err := ensureResultsLog(bench.ExpLog); err != nil {
		return nil, err
	}

	sequence := bench.SequenceName()
	rows := make([]EvalRow, 0, len(bench.Matchers))
	for _, entry := range bench.Matchers {
		row, err := e.evaluateOne(ctx, entry, jobs, labels)
		if err != nil {
			return rows, err
		}
		metrics.UpdateEvaluation(sequence, row.Matcher, row.AveragePrecision, row.MaxRecall)
		if err := appendResultRow(bench.ExpLog, row); err != nil {
			return rows, err
		}
		rows = append(rows, row)

		e.logger.Info(ctx, "matcher evaluated",
			logger.String("sequence", sequence),
			logger.String("matcher", row.Matcher),
			logger.Float64("average_precision", row.AveragePrecision),
			logger.Float64("max_recall", row.MaxRecall),
		)
	}

	return rows, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, entry config.MatcherEntry, jobs []queue.Job, labels []int) (EvalRow, error) {
	m, err := matcher.New(ctx, entry.Name, entry.Params)
	if err != nil {
		return EvalRow{}, err
	}

	e.logger.Info(ctx, "running matcher",
		logger.String("matcher", entry.Name),
		logger.Int("pairs", len(jobs)),
		logger.Int("workers", e.workerCount),
	)

	results, err := worker.Score(ctx, m, jobs, e.workerCount, e.queueSize,
		worker.WithMatcherName(entry.Name),
		worker.WithLogger(e.logger.Named(entry.Name)),
	)
	if err != nil {
		return EvalRow{}, fmt.Errorf("matcher %s: %w", entry.Name, err)
	}

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = float64(r.NumInliers)
	}
	summary, err := scoring.Evaluate(labels, scores)
	if err != nil {
		return EvalRow{}, fmt.Errorf("matcher %s: %w", entry.Name, err)
	}

	return EvalRow{
		Matcher:          entry.Name,
		AveragePrecision: summary.AveragePrecision,
		MaxRecall:        summary.MaxRecall,
	}, nil
}

// ensureResultsLog creates the results log with its header. An existing
// log is left untouched.
func ensureResultsLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create results log: %w", err)
	}
	defer f.Close()

	header := "| " + strings.Join(resultColumns, " | ") + " |"
	if _, err := fmt.Fprintf(f, "%s\n%s\n", header, strings.Repeat("-", len(header))); err != nil {
		return fmt.Errorf("write results log header: %w", err)
	}
	return nil
}

func appendResultRow(path string, row EvalRow) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	line := "| " + strings.Join([]string{
		row.Matcher,
		formatScore(row.AveragePrecision),
		formatScore(row.MaxRecall),
	}, " | ") + " |\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append results log: %w", err)
	}
	return nil
}

// formatScore prints the shortest exact form and always keeps a fraction
// or exponent, so 1 is written as "1.0".
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
