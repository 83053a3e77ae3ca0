package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	service "github.com/okian/kidnapped/internal/app"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var datasetPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize and validate a saved episode dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(cmd.Context()); err != nil {
				return err
			}

			report, err := service.Inspect(cmd.Context(), datasetPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ds := report.Dataset
			fmt.Fprintf(out, "Sequence %q: %d episodes, %d peer views (%d helpful, %d distractors)\n",
				ds.SequenceName, report.Episodes, report.Peers, report.Helpful, report.Distractors)

			shown := ds.Episodes
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			if len(shown) > 0 {
				rows := make([][]string, 0, len(shown))
				for i := range shown {
					ep := &shown[i]
					rows = append(rows, []string{
						strconv.Itoa(ep.EpisodeID),
						ep.QueryImage,
						strconv.Itoa(len(ep.Peers)),
						strconv.Itoa(ep.NumHelpful()),
					})
				}
				fmt.Fprintln(out, renderTable("",
					[]string{"Episode", "Query", "Peers", "Helpful"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
				))
				if len(shown) < len(ds.Episodes) {
					fmt.Fprintf(out, "... %d more episodes\n", len(ds.Episodes)-len(shown))
				}
			}

			if err := report.Err(); err != nil {
				return fmt.Errorf("dataset has %d problems: %w", len(report.Problems), err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Episode dataset JSON file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum episodes to list (0 lists all)")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
