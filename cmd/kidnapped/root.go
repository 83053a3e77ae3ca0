package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/kidnapped/internal/adapters/codec"
	service "github.com/okian/kidnapped/internal/app"
	"github.com/okian/kidnapped/internal/config"
)

type buildFlags struct {
	configPath           string
	imagesRoot           string
	output               string
	maxEpisodes          int
	numDistractorPeers   int
	seed                 int64
	includeNegativePairs bool
}

func newRootCommand() *cobra.Command {
	var logLevelFlag string
	var metricsFileFlag string
	var flags buildFlags

	ctx := newCommandContext(&logLevelFlag, &metricsFileFlag)

	rootCmd := &cobra.Command{
		Use:           "kidnapped",
		Short:         "Build kidnapped-robot episodes from a verification benchmark",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig(cmd.Context())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.writeMetrics(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, ctx, &flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log_level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsFileFlag, "metrics_file", "", "Write Prometheus metrics to this file when the command finishes")

	f := rootCmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Benchmark configuration YAML")
	f.StringVar(&flags.imagesRoot, "images_root", "", "Directory containing the benchmark images")
	f.StringVar(&flags.output, "output", "", "Output JSON file for the episode dataset")
	f.IntVar(&flags.maxEpisodes, "max_episodes", 0, "Limit the number of generated episodes (0 means no limit)")
	f.IntVar(&flags.numDistractorPeers, "num_distractor_peers", 4, "Number of distractor peers sampled per episode")
	f.Int64Var(&flags.seed, "seed", 0, "Random seed for reproducible sampling")
	f.BoolVar(&flags.includeNegativePairs, "include_negative_pairs", false, "Include negative pairs (default is positive pairs only)")
	for _, name := range []string{"config", "images_root", "output"} {
		_ = rootCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newEvalCommand(ctx))

	return rootCmd
}

func runBuild(cmd *cobra.Command, ctx *commandContext, flags *buildFlags) error {
	cfg, err := ctx.ensureConfig(cmd.Context())
	if err != nil {
		return err
	}

	req := service.NewBuildRequest(flags.configPath, flags.imagesRoot)
	req.MaxEpisodes = intOverride(cmd, "max_episodes", flags.maxEpisodes, cfg.MaxEpisodes)
	req.NumDistractorPeers = intOverride(cmd, "num_distractor_peers", flags.numDistractorPeers, cfg.NumDistractorPeers)
	req.Seed = cfg.Seed
	if cmd.Flags().Changed("seed") {
		req.Seed = flags.seed
	}
	req.PositiveOnly = !flags.includeNegativePairs

	if req.NumDistractorPeers < 0 {
		return fmt.Errorf("%w: --num_distractor_peers must not be negative", config.ErrInvalidConfig)
	}
	if req.MaxEpisodes < 0 {
		return fmt.Errorf("%w: --max_episodes must not be negative", config.ErrInvalidConfig)
	}

	ds, err := service.NewBuilder().Build(cmd.Context(), req)
	if err != nil {
		return err
	}

	output, err := filepath.Abs(flags.output)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	if err := codec.Save(cmd.Context(), output, ds); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d episodes for sequence %q to %s\n", ds.Len(), ds.SequenceName, output)
	return nil
}
