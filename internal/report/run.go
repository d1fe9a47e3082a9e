package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one analysis-run summary. SlotLength is zero for coarse runs.
type Run struct {
	ID          string `json:"id"`
	Program     string `json:"program"`
	Pipeline    string `json:"pipeline"`
	Mode        string `json:"mode"`
	MinStages   int    `json:"min_stages"`
	SlotLength  int    `json:"slot_length,omitempty"`
	Events      int    `json:"events"`
	Edges       int    `json:"edges"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
}

// AppendRun inserts one run record, assigning a time-ordered UUID and a
// UTC timestamp when the caller left them empty, and returns the stored
// record.
func (s *Store) AppendRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.Must(uuid.NewV7()).String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, program, pipeline, mode, min_stages, slot_length, events, edges, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Program,
		run.Pipeline,
		run.Mode,
		run.MinStages,
		run.SlotLength,
		run.Events,
		run.Edges,
		run.Fingerprint,
		run.CreatedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("append run: %w", err)
	}
	return run, nil
}

// ListOptions filter a history query.
type ListOptions struct {
	// Program restricts the listing to one program name.
	Program string
	// Limit caps the number of rows returned; zero means no cap.
	Limit int
}

// ListRuns returns run records newest first. The id tiebreaker keeps the
// order deterministic for records sharing a timestamp.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	query := `
		SELECT id, program, pipeline, mode, min_stages, slot_length, events, edges, fingerprint, created_at
		FROM runs
	`
	var args []any
	if opts.Program != "" {
		query += " WHERE program = ?"
		args = append(args, opts.Program)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Program, &r.Pipeline, &r.Mode,
			&r.MinStages, &r.SlotLength, &r.Events, &r.Edges,
			&r.Fingerprint, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
