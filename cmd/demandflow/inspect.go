package main

import (
	"fmt"

	"github.com/Veraticus/demandflow/internal/cli"
	"github.com/Veraticus/demandflow/internal/pipeline"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Profile the source data without forecasting",
		Long: `Load and clean the six source files and print their data-quality profile:
row counts, missing values per column and duplicate rows, before and after
cleaning. Nothing is exported.`,
		RunE: runInspect,
	}

	cmd.Flags().String("input-dir", ".", "Directory holding the source CSV files")

	return cmd
}

func runInspect(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd, map[string]string{"input.dir": "input-dir"}); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	insp, err := pipeline.New(cfg).Inspect(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, cli.FormatTitle("Data quality of "+cfg.Input.Dir))

	_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("As loaded"))
	_, _ = fmt.Fprintln(out, cli.RenderProfiles(insp.Profiles))
	if missing := cli.RenderMissing(insp.Profiles); missing != "" {
		_, _ = fmt.Fprintln(out, missing)
	} else {
		_, _ = fmt.Fprintln(out, cli.FormatSuccess("No missing values"))
	}

	_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("Cleaning"))
	_, _ = fmt.Fprintln(out, cli.RenderCleaning(insp.Reports))

	_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("After cleaning"))
	_, _ = fmt.Fprintln(out, cli.RenderProfiles(insp.Cleaned))
	return nil
}
