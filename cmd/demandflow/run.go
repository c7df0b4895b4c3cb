package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/demandflow/internal/cli"
	"github.com/Veraticus/demandflow/internal/forecast"
	"github.com/Veraticus/demandflow/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline",
		Long: `Load the six source files, clean and join them, aggregate demand,
forecast every category with enough history and export the results.

Categories with fewer monthly observations than --min-history are skipped.
A category whose model cannot be fit is logged and skipped; the run continues.`,
		RunE: runPipeline,
	}

	cmd.Flags().String("input-dir", ".", "Directory holding the source CSV files")
	cmd.Flags().String("output-dir", "output", "Directory for exported tables and plots")
	cmd.Flags().Int("horizon", 6, "Months to forecast past the last observation")
	cmd.Flags().Int("min-history", 6, "Monthly observations a category needs to be forecast")
	cmd.Flags().Int("workers", 1, "Categories forecast in parallel")
	cmd.Flags().Bool("report", false, "Print the data-quality report")
	cmd.Flags().Bool("no-plots", false, "Skip the per-category forecast plots")

	return cmd
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := bindFlags(cmd, map[string]string{
		"input.dir":            "input-dir",
		"output.dir":           "output-dir",
		"forecast.horizon":     "horizon",
		"forecast.min_history": "min-history",
		"forecast.workers":     "workers",
		"report":               "report",
	}); err != nil {
		return err
	}
	if noPlots, _ := cmd.Flags().GetBool("no-plots"); noPlots {
		viper.Set("plots", false)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := pipeline.Open(ctx, cfg, pipeline.WithProgress(progressFactory(os.Stderr)))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	interrupts.SetHint(fmt.Sprintf("Partial output may remain in %s", p.Store().Location()))

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, cli.FormatTitle("Forecasting demand from "+cfg.Input.Dir))

	res, err := p.Run(ctx)
	if err != nil {
		if res == nil {
			return err
		}
		return fmt.Errorf("run %s failed: %w", res.Run.ID, err)
	}

	if cfg.Report {
		_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("Source data"))
		_, _ = fmt.Fprintln(out, cli.RenderProfiles(res.Profiles))
		if missing := cli.RenderMissing(res.Profiles); missing != "" {
			_, _ = fmt.Fprintln(out, missing)
		}
		_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("Cleaning"))
		_, _ = fmt.Fprintln(out, cli.RenderCleaning(res.Reports))
	}

	for _, c := range res.Categories {
		if c.Err != nil {
			_, _ = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s: %v", c.Category, c.Err)))
		}
	}

	_, _ = fmt.Fprintln(out, cli.RenderSummary(cli.RunSummary{
		Run:       res.Run,
		Sinks:     res.Sinks,
		Artifacts: len(res.Plots),
		Location:  p.Store().Location(),
	}))
	return nil
}

// progressFactory draws a bar on w for every forecast with at least one category.
func progressFactory(w io.Writer) pipeline.ProgressFactory {
	return func(total int) forecast.Progress {
		if total == 0 {
			return nil
		}
		return cli.NewProgressBar(total, w, "Forecasting categories...")
	}
}
