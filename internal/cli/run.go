package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"restaurants/internal/app"
	"restaurants/internal/domain"
	"restaurants/internal/etl"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run all four stages once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				run, res, err := a.Service().RunPipeline(cmd.Context(), domain.TriggerManual)
				if res != nil {
					printResult(cmd.OutOrStdout(), res)
				}
				if err != nil {
					if run != nil && run.FailedStage != "" {
						return fmt.Errorf("run %s failed in %s stage: %w", run.ID, run.FailedStage, err)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s finished\n", run.ID)
				return nil
			})
		},
	}
}

func newStageCommand(opts *rootOptions) *cobra.Command {
	names := make([]string, len(etl.Stages))
	for i, s := range etl.Stages {
		names[i] = string(s)
	}
	return &cobra.Command{
		Use:       "stage <" + strings.Join(names, "|") + ">",
		Short:     "Run a single stage against the fixed artifact paths",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				res, err := a.Service().RunStage(cmd.Context(), etl.Stage(args[0]))
				if res != nil {
					printResult(cmd.OutOrStdout(), res)
				}
				return err
			})
		},
	}
}

func printResult(w io.Writer, res *etl.RunResult) {
	fmt.Fprintf(w, "state: %s\n", res.State)
	if res.FailedStage != "" {
		fmt.Fprintf(w, "failed stage: %s\n", res.FailedStage)
	}
	for _, stage := range etl.Stages {
		d, ok := res.Durations[stage]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-7s %8s  %s\n", stage, d.Round(time.Millisecond), artifactSummary(res, stage))
	}
	for _, f := range res.Failures() {
		if f.Query != "" {
			fmt.Fprintf(w, "  ! %s row %d (%q): %s\n", f.Stage, f.Row, f.Query, f.Reason())
		} else {
			fmt.Fprintf(w, "  ! %s row %d: %s\n", f.Stage, f.Row, f.Reason())
		}
	}
}

func artifactSummary(res *etl.RunResult, stage etl.Stage) string {
	switch stage {
	case etl.StageMerge:
		return fmt.Sprintf("%d rows -> %s", res.Merged.Rows, res.Merged.Path)
	case etl.StageEnrich:
		return fmt.Sprintf("%d lookups, %d resolved, %d failed -> %s",
			res.Enrich.Lookups, res.Enrich.Resolved, len(res.Enrich.Failures), res.Enriched.Path)
	case etl.StageIndex:
		return fmt.Sprintf("%d indexed, %d failed -> %s", res.Index.Indexed, len(res.Index.Failures), res.Indexed.Path)
	default:
		return fmt.Sprintf("%d rows -> %s, %s", res.Outputs.Parquet.Rows, res.Outputs.Parquet.Path, res.Outputs.CSV.Path)
	}
}
