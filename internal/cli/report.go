package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/demandflow/internal/cleaning"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RunSummary is what the run command prints once the pipeline finishes.
type RunSummary struct {
	Run       model.Run
	Location  string
	Sinks     []string
	Artifacts int
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// RenderProfiles renders one row per dataset with its size, missing values and duplicates.
func RenderProfiles(profiles []cleaning.Profile) string {
	t := newTable("Dataset", "Rows", "Columns", "Missing", "Duplicates")
	for _, p := range profiles {
		t.Row(
			string(p.Dataset),
			strconv.Itoa(p.Rows),
			strconv.Itoa(len(p.Columns)),
			strconv.Itoa(p.TotalMissing()),
			strconv.Itoa(p.Duplicates),
		)
	}
	return t.String()
}

// RenderMissing lists every column that has missing values. It returns an empty
// string when no column does.
func RenderMissing(profiles []cleaning.Profile) string {
	t := newTable("Dataset", "Column", "Type", "Missing")
	n := 0
	for _, p := range profiles {
		for _, c := range p.Columns {
			if c.Missing == 0 {
				continue
			}
			t.Row(string(p.Dataset), c.Name, c.Type, strconv.Itoa(c.Missing))
			n++
		}
	}
	if n == 0 {
		return ""
	}
	return t.String()
}

// RenderCleaning renders what the cleaner changed in each table.
func RenderCleaning(reports []cleaning.Report) string {
	t := newTable("Dataset", "Rows in", "Rows out", "No ID", "Bad dates", "Duplicates", "Imputed", "Filled")
	for _, r := range reports {
		t.Row(
			string(r.Dataset),
			strconv.Itoa(r.RowsIn),
			strconv.Itoa(r.RowsOut),
			strconv.Itoa(r.DroppedMissingIDs),
			strconv.Itoa(r.InvalidDates),
			strconv.Itoa(r.Duplicates),
			formatCounts(r.Imputed),
			formatCounts(r.Filled),
		)
	}
	return t.String()
}

// RenderSummary renders the outcome of a run in a box.
func RenderSummary(s RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Run:"), SubtleStyle.Render(s.Run.ID))
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Status:"), statusText(s.Run.Status))
	fmt.Fprintf(&b, "%s %d forecast, %d skipped, %d failed\n",
		BoldStyle.Render("Categories:"), s.Run.CategoriesForecast, s.Run.CategoriesSkipped, s.Run.CategoriesFailed)
	fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Forecast rows:"), s.Run.ForecastRows)
	if len(s.Sinks) > 0 {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Sinks:"), strings.Join(s.Sinks, ", "))
	}
	fmt.Fprintf(&b, "%s %s %d plots", BoldStyle.Render("Artifacts:"), ChartIcon, s.Artifacts)
	if s.Location != "" {
		fmt.Fprintf(&b, "\n%s %s %s", BoldStyle.Render("Output:"), FolderIcon, s.Location)
	}

	return RenderBox("Demand forecast complete", b.String())
}

func statusText(status model.RunStatus) string {
	switch status {
	case model.RunStatusSucceeded:
		return SuccessStyle.Render(string(status))
	case model.RunStatusFailed:
		return ErrorStyle.Render(string(status))
	default:
		return WarningStyle.Render(string(status))
	}
}

// formatCounts renders a column count map as "a=1 b=2" in column order.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	cols := make([]string, 0, len(counts))
	for col := range counts {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%d", col, counts[col])
	}
	return strings.Join(parts, " ")
}
