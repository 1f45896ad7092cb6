package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/portable/internal/models"
)

// RunRecorder persists migration runs and their item outcomes as they happen.
type RunRecorder struct {
	Runs  *RunRepository
	Items *RunItemRepository
}

// NewRunRecorder creates a RunRecorder over db
func NewRunRecorder(db *sql.DB) *RunRecorder {
	return &RunRecorder{Runs: NewRunRepository(db), Items: NewRunItemRepository(db)}
}

// StartRun inserts run, assigning its ID and sequence
func (r *RunRecorder) StartRun(run *models.Run) error {
	return r.Runs.Create(run)
}

// RecordItem inserts one item outcome
func (r *RunRecorder) RecordItem(item *models.RunItem) error {
	return r.Items.Create(item)
}

// FinishRun stores the final status and counters of run
func (r *RunRecorder) FinishRun(run *models.Run) error {
	return r.Runs.Update(run)
}

// Load returns a run with all of its items
func (r *RunRecorder) Load(id string) (*models.Run, []*models.RunItem, error) {
	run, err := r.Runs.Get(id)
	if err != nil {
		return nil, nil, err
	}
	items, err := r.Items.ListByRun(run.ID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load items for run %s: %w", id, err)
	}
	return run, items, nil
}
