package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/portable/internal/formatter"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/repositories"
	"github.com/desertthunder/portable/internal/shared"
	"github.com/urfave/cli/v3"
)

// findRun looks a run up by "latest", its sequence number or its id.
func findRun(runs *repositories.RunRepository, ref string) (*models.Run, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	switch {
	case ref == "" || ref == "latest":
		return runs.Latest()
	default:
		if seq, err := strconv.Atoi(ref); err == nil {
			return runs.GetBySequence(seq)
		}
		return runs.Get(ref)
	}
}

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	for _, key := range []string{"source", "target", "status"} {
		if v := cmd.String(key); v != "" {
			criteria[key] = v
		}
	}

	runs, err := repositories.NewRunRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		docs := make([]map[string]any, len(runs))
		for i, run := range runs {
			docs[i] = map[string]any{
				"id":         run.ID(),
				"sequence":   run.Sequence(),
				"source":     run.Source(),
				"target":     run.Target(),
				"status":     run.Status(),
				"dry_run":    run.DryRun(),
				"tally":      run.Tally(),
				"started_at": run.StartedAt(),
			}
		}
		return r.writeJSON(docs, cmd.Bool("pretty"))
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded\n")
	}
	return r.writePlain("%s", formatter.RunsToText(runs))
}

// HistoryShow prints the report of one recorded run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	recorder := repositories.NewRunRecorder(db)
	run, err := findRun(recorder.Runs, cmd.StringArg("run"))
	if err != nil {
		return err
	}
	run, items, err := recorder.Load(run.ID())
	if err != nil {
		return err
	}

	return formatter.WriteReport(r.output, formatter.RunReport{Run: run, Items: items}, format)
}

// HistoryDelete removes a recorded run from the history listing.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	runs := repositories.NewRunRepository(db)
	run, err := findRun(runs, ref)
	if err != nil {
		return err
	}
	if err := runs.Delete(run.ID()); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted run #%d (%s)\n", run.Sequence(), run.ID())
}
