package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/shared"
	"gopkg.in/yaml.v3"
)

// RunReport is a run with its item outcomes, as produced by a migration or read back from history.
type RunReport struct {
	Run   *models.Run
	Items []*models.RunItem
}

// runDoc is the serialized shape of a [RunReport].
type runDoc struct {
	ID          string       `json:"id" yaml:"id"`
	Sequence    int          `json:"sequence" yaml:"sequence"`
	Source      string       `json:"source" yaml:"source"`
	Target      string       `json:"target" yaml:"target"`
	Status      string       `json:"status" yaml:"status"`
	DryRun      bool         `json:"dry_run" yaml:"dry_run"`
	Message     string       `json:"message,omitempty" yaml:"message,omitempty"`
	StartedAt   string       `json:"started_at" yaml:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Tally       models.Tally `json:"tally" yaml:"tally"`
	Items       []itemDoc    `json:"items" yaml:"items"`
}

type itemDoc struct {
	Pass     string `json:"pass" yaml:"pass"`
	Kind     string `json:"kind" yaml:"kind"`
	Label    string `json:"label" yaml:"label"`
	SourceID string `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	TargetID string `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Outcome  string `json:"outcome" yaml:"outcome"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

func (r RunReport) doc() runDoc {
	d := runDoc{
		ID:        r.Run.ID(),
		Sequence:  r.Run.Sequence(),
		Source:    r.Run.Source(),
		Target:    r.Run.Target(),
		Status:    string(r.Run.Status()),
		DryRun:    r.Run.DryRun(),
		Message:   r.Run.Message(),
		StartedAt: r.Run.StartedAt().Format(time.RFC3339),
		Tally:     r.Run.Tally(),
		Items:     make([]itemDoc, 0, len(r.Items)),
	}
	if c := r.Run.CompletedAt(); c != nil {
		d.CompletedAt = c.Format(time.RFC3339)
	}
	for _, it := range r.Items {
		d.Items = append(d.Items, itemDoc{
			Pass:     string(it.Pass()),
			Kind:     string(it.Kind()),
			Label:    it.Label(),
			SourceID: it.SourceID(),
			TargetID: it.TargetID(),
			Outcome:  string(it.Outcome()),
			Message:  it.Message(),
		})
	}
	return d
}

// passTallies groups item outcomes by pass, in run order.
func (r RunReport) passTallies() ([]models.Pass, map[models.Pass]models.Tally) {
	tallies := make(map[models.Pass]models.Tally)
	var order []models.Pass
	for _, it := range r.Items {
		t, seen := tallies[it.Pass()]
		if !seen {
			order = append(order, it.Pass())
		}
		t.Add(it.Outcome())
		tallies[it.Pass()] = t
	}
	return order, tallies
}

// ReportToText renders a run summary followed by non-trivial items.
//
// Items that were written or already present are summarized by the counters only.
func ReportToText(r RunReport) ([]byte, error) {
	var buf bytes.Buffer
	run := r.Run

	fmt.Fprintf(&buf, "Run #%d %s -> %s (%s)\n", run.Sequence(), run.Source(), run.Target(), run.Status())
	if run.DryRun() {
		buf.WriteString("Dry run: no changes were sent\n")
	}
	if run.Message() != "" {
		fmt.Fprintf(&buf, "Message: %s\n", run.Message())
	}
	writeTally(&buf, "Total", run.Tally())

	passes, tallies := r.passTallies()
	for _, p := range passes {
		writeTally(&buf, "  "+string(p), tallies[p])
	}

	var notable []*models.RunItem
	for _, it := range r.Items {
		switch it.Outcome() {
		case models.OutcomeWritten, models.OutcomeExists:
		default:
			notable = append(notable, it)
		}
	}
	if len(notable) > 0 {
		buf.WriteString("\n")
		for _, it := range notable {
			fmt.Fprintf(&buf, "[%s] %s %s", it.Outcome(), it.Kind(), it.Label())
			if it.Message() != "" {
				fmt.Fprintf(&buf, ": %s", it.Message())
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

func writeTally(w io.Writer, label string, t models.Tally) {
	fmt.Fprintf(w, "%s: %d written, %d existing, %d unresolved, %d failed, %d skipped\n",
		label, t.Written, t.Existing, t.Unresolved, t.Failed, t.Skipped)
}

// ReportToMarkdown renders the run summary, a per-pass table and every item.
func ReportToMarkdown(r RunReport) ([]byte, error) {
	var buf bytes.Buffer
	run := r.Run

	fmt.Fprintf(&buf, "# Run %d: %s to %s\n\n", run.Sequence(), run.Source(), run.Target())
	fmt.Fprintf(&buf, "**Status**: %s\n", run.Status())
	fmt.Fprintf(&buf, "**Started**: %s\n", run.StartedAt().Format(time.RFC3339))
	if run.DryRun() {
		buf.WriteString("**Dry run**: yes\n")
	}
	if run.Message() != "" {
		fmt.Fprintf(&buf, "**Message**: %s\n", run.Message())
	}

	buf.WriteString("\n| Pass | Written | Existing | Unresolved | Failed | Skipped |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	passes, tallies := r.passTallies()
	for _, p := range passes {
		t := tallies[p]
		fmt.Fprintf(&buf, "| %s | %d | %d | %d | %d | %d |\n", p, t.Written, t.Existing, t.Unresolved, t.Failed, t.Skipped)
	}
	t := run.Tally()
	fmt.Fprintf(&buf, "| **total** | %d | %d | %d | %d | %d |\n", t.Written, t.Existing, t.Unresolved, t.Failed, t.Skipped)

	if len(r.Items) > 0 {
		buf.WriteString("\n## Items\n\n")
		for _, it := range r.Items {
			fmt.Fprintf(&buf, "- `%s` %s %s", it.Outcome(), it.Kind(), it.Label())
			if it.Message() != "" {
				fmt.Fprintf(&buf, " (%s)", it.Message())
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// ReportToCSV writes one row per item with columns: Pass, Kind, Label, SourceID, TargetID, Outcome, Message
func ReportToCSV(r RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Pass", "Kind", "Label", "SourceID", "TargetID", "Outcome", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, it := range r.Items {
		record := []string{
			string(it.Pass()),
			string(it.Kind()),
			it.Label(),
			it.SourceID(),
			it.TargetID(),
			string(it.Outcome()),
			it.Message(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportToYAML encodes the full report as YAML.
func ReportToYAML(r RunReport) ([]byte, error) {
	data, err := yaml.Marshal(r.doc())
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return data, nil
}

// ReportToJSON encodes the full report as indented JSON.
func ReportToJSON(r RunReport) ([]byte, error) {
	return shared.MarshalJSON(r.doc(), true)
}

// RenderReport encodes r in format f.
func RenderReport(r RunReport, f Format) ([]byte, error) {
	if r.Run == nil {
		return nil, fmt.Errorf("%w: report has no run", shared.ErrInvalidArgument)
	}
	switch f {
	case FormatMarkdown:
		return ReportToMarkdown(r)
	case FormatCSV:
		return ReportToCSV(r)
	case FormatYAML:
		return ReportToYAML(r)
	case FormatJSON:
		return ReportToJSON(r)
	default:
		return ReportToText(r)
	}
}

// WriteReport renders r in format f to w.
func WriteReport(w io.Writer, r RunReport, f Format) error {
	data, err := RenderReport(r, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// RunsToText renders a one-line summary per run, most recent first as given.
func RunsToText(runs []*models.Run) []byte {
	var buf bytes.Buffer
	for _, run := range runs {
		t := run.Tally()
		dry := ""
		if run.DryRun() {
			dry = " (dry run)"
		}
		fmt.Fprintf(&buf, "#%-4d %s  %s -> %s  %-9s  written=%d existing=%d unresolved=%d failed=%d%s\n",
			run.Sequence(), run.StartedAt().Format("2006-01-02 15:04"), run.Source(), run.Target(),
			run.Status(), t.Written, t.Existing, t.Unresolved, t.Failed, dry)
	}
	return buf.Bytes()
}
