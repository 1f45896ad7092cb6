package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/tasks"
)

var cell = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
var label = lipgloss.NewStyle().Width(14)

// RunSummary renders the per-pass counters of a migration followed by any items that need attention.
//
// At most maxIssues unresolved or failed items are listed; zero lists none.
func RunSummary(result *tasks.MigrationResult, maxIssues int) string {
	var b strings.Builder
	run := result.Run

	title := fmt.Sprintf("%s → %s", run.Source(), run.Target())
	if run.DryRun() {
		title += " (dry run)"
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")

	b.WriteString(row("pass", "written", "existing", "unresolved", "failed", "skipped"))
	for _, p := range result.Passes {
		if p.Skipped {
			b.WriteString(label.Render(string(p.Pass)))
			b.WriteString(styles.help.Render("skipped: " + p.Message))
			b.WriteString("\n")
			continue
		}
		b.WriteString(tallyRow(string(p.Pass), p.Tally))
		if p.Message != "" {
			b.WriteString(styles.err.Render("  " + p.Message))
			b.WriteString("\n")
		}
	}
	b.WriteString(tallyRow("total", result.Tally))

	if issues := attention(result.Items()); len(issues) > 0 && maxIssues > 0 {
		b.WriteString("\n")
		for i, it := range issues {
			if i == maxIssues {
				b.WriteString(styles.help.Render(fmt.Sprintf("… and %d more", len(issues)-maxIssues)))
				b.WriteString("\n")
				break
			}
			line := fmt.Sprintf("%-10s %s", it.Outcome(), it.Label())
			if it.Message() != "" {
				line += ": " + it.Message()
			}
			b.WriteString(styles.Outcome(it.Outcome()).Render(line))
			b.WriteString("\n")
		}
	}

	status := styles.ok.Render("✓ " + string(run.Status()))
	if run.Status() != models.RunCompleted {
		status = styles.err.Render("✗ " + string(run.Status()))
		if run.Message() != "" {
			status += " " + run.Message()
		}
	}
	b.WriteString("\n" + status + "\n")
	return b.String()
}

// ExportSummary renders the result of a library export.
func ExportSummary(result *tasks.ExportResult) string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Exported %s library", result.Provider)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Directory: %s\n", result.OutputDirectory)
	fmt.Fprintf(&b, "Library:   %s\n", result.LibraryFile)
	if result.ManifestPath != "" {
		fmt.Fprintf(&b, "Manifest:  %s\n", result.ManifestPath)
	}
	for _, s := range result.Skipped {
		b.WriteString(styles.help.Render(fmt.Sprintf("%s not readable, skipped", s)))
		b.WriteString("\n")
	}

	b.WriteString(styles.ok.Render(fmt.Sprintf("✓ %d playlists exported", result.SuccessfulExports)))
	b.WriteString("\n")
	if result.FailedExports > 0 {
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ %d playlists failed", result.FailedExports)))
		b.WriteString("\n")
		for _, res := range result.Results {
			if !res.Success {
				b.WriteString(styles.warn.Render(fmt.Sprintf("  %s: %s", res.PlaylistName, res.ErrorMessage)))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func attention(items []*models.RunItem) []*models.RunItem {
	var out []*models.RunItem
	for _, it := range items {
		if it.Outcome() == models.OutcomeUnresolved || it.Outcome() == models.OutcomeFailed {
			out = append(out, it)
		}
	}
	return out
}

func row(name string, cols ...string) string {
	var b strings.Builder
	b.WriteString(label.Render(name))
	for _, c := range cols {
		b.WriteString(cell.Render(c))
	}
	return b.String() + "\n"
}

func tallyRow(name string, t models.Tally) string {
	return row(name,
		styles.Outcome(models.OutcomeWritten).Render(fmt.Sprint(t.Written)),
		fmt.Sprint(t.Existing),
		styles.Outcome(models.OutcomeUnresolved).Render(fmt.Sprint(t.Unresolved)),
		styles.Outcome(models.OutcomeFailed).Render(fmt.Sprint(t.Failed)),
		fmt.Sprint(t.Skipped))
}
