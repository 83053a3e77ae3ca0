package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/kidnapped/internal/adapters/matcher"
	service "github.com/okian/kidnapped/internal/app"
	"github.com/okian/kidnapped/internal/config"
)

func newEvalCommand(ctx *commandContext) *cobra.Command {
	var configPath string
	var imagesRoot string
	var workerCount int
	var queueSize int
	var listMatchers bool

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score benchmark pairs with the configured matchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listMatchers {
				fmt.Fprintf(out, "Available matchers: %s\n", strings.Join(matcher.Available(), ", "))
				return nil
			}
			if configPath == "" {
				return fmt.Errorf("%w: --config is required", config.ErrInvalidConfig)
			}

			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}

			bench, err := config.LoadBenchmark(cmd.Context(), configPath)
			if err != nil {
				return err
			}

			evaluator := service.NewEvaluator(
				service.WithWorkerCount(intOverride(cmd, "worker_count", workerCount, cfg.WorkerCount)),
				service.WithQueueSize(intOverride(cmd, "queue_size", queueSize, cfg.QueueSize)),
			)
			rows, err := evaluator.Evaluate(cmd.Context(), bench, imagesRoot)
			if len(rows) > 0 {
				printEvalRows(cmd, bench.SequenceName(), rows)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Results appended to %s\n", bench.ExpLog)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Benchmark configuration YAML")
	cmd.Flags().StringVar(&imagesRoot, "images_root", "", "Image directory (defaults to data.image_dir)")
	cmd.Flags().IntVar(&workerCount, "worker_count", 0, "Concurrent matcher workers")
	cmd.Flags().IntVar(&queueSize, "queue_size", 0, "Pair job queue capacity")
	cmd.Flags().BoolVar(&listMatchers, "support_model", false, "List the available matchers and exit")

	return cmd
}

func printEvalRows(cmd *cobra.Command, sequence string, rows []service.EvalRow) {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			r.Matcher,
			strconv.FormatFloat(r.AveragePrecision, 'f', 4, 64),
			strconv.FormatFloat(r.MaxRecall, 'f', 4, 64),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable("GV-Bench:"+sequence,
		[]string{"Matcher", "mAP", "Max Recall@1.0"},
		table,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
}
