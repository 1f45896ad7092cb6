package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/shared"
)

var _ models.Repository[*models.RunItem] = (*RunItemRepository)(nil)

const runItemColumns = `id, run_id, pass, kind, label, source_id, target_id, outcome, message, created_at`

// RunItemRepository implements models.Repository[*models.RunItem] for per-item outcomes.
//
// Items belong to a run and are removed with it; they are never soft-deleted on their own.
type RunItemRepository struct {
	db *sql.DB
}

// NewRunItemRepository creates a new RunItemRepository with the given database connection
func NewRunItemRepository(db *sql.DB) *RunItemRepository {
	return &RunItemRepository{db: db}
}

// Create inserts a new item with generated ID and sequence
func (r *RunItemRepository) Create(item *models.RunItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "run_items")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO run_items (id, sequence, run_id, pass, kind, label, source_id, target_id, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		item.RunID(),
		item.Pass(),
		item.Kind(),
		item.Label(),
		nullString(item.SourceID()),
		nullString(item.TargetID()),
		item.Outcome(),
		nullString(item.Message()),
		item.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run item: %w", err)
	}

	item.SetID(id)
	return nil
}

// Get retrieves an item by ID
func (r *RunItemRepository) Get(id string) (*models.RunItem, error) {
	query := `SELECT ` + runItemColumns + ` FROM run_items WHERE id = ?`

	item, err := scanRunItem(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run item", shared.ErrNotFound)
	}
	return item, err
}

// Update writes an item's outcome, target id and message
func (r *RunItemRepository) Update(item *models.RunItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE run_items
		SET target_id = ?, outcome = ?, message = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		nullString(item.TargetID()),
		item.Outcome(),
		nullString(item.Message()),
		item.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run item: %w", err)
	}

	return expectAffected(result, "run item", item.ID())
}

// Delete removes an item by ID
func (r *RunItemRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM run_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run item: %w", err)
	}

	return expectAffected(result, "run item", id)
}

// List retrieves items in insertion order.
//
// Supported criteria: "run_id", "pass", "outcome" and "kind" (strings).
func (r *RunItemRepository) List(criteria map[string]any) ([]*models.RunItem, error) {
	query := `SELECT ` + runItemColumns + ` FROM run_items WHERE 1 = 1`
	args := []any{}

	for _, key := range []string{"run_id", "pass", "outcome", "kind"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += fmt.Sprintf(" AND %s = ?", key)
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run items: %w", err)
	}
	defer rows.Close()

	var items []*models.RunItem
	for rows.Next() {
		item, err := scanRunItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// ListByRun retrieves every item recorded for runID
func (r *RunItemRepository) ListByRun(runID string) ([]*models.RunItem, error) {
	return r.List(map[string]any{"run_id": runID})
}

func scanRunItem(s scanner) (*models.RunItem, error) {
	var (
		id        string
		runID     string
		pass      string
		kind      string
		label     string
		sourceID  sql.NullString
		targetID  sql.NullString
		outcome   string
		message   sql.NullString
		createdAt time.Time
	)

	err := s.Scan(&id, &runID, &pass, &kind, &label, &sourceID, &targetID, &outcome, &message, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run item: %w", err)
	}

	item := models.NewRunItem(runID, models.Pass(pass), models.Kind(kind), label, models.Outcome(outcome))
	item.SetID(id)
	item.SetSourceID(sourceID.String)
	item.SetTargetID(targetID.String)
	item.SetMessage(message.String)
	item.SetCreatedAt(createdAt)

	return item, nil
}
