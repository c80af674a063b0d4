package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/starford/talentflow/internal/models"
)

// Import upserts jobs and candidates by id, then renumbers job positions to
// 1..N keeping their relative order.
func (db *DB) Import(ctx context.Context, jobs []models.Job, candidates []models.Candidate) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	jobStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO jobs (id, title, slug, status, tags, position) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title    = excluded.title,
			slug     = excluded.slug,
			status   = excluded.status,
			tags     = excluded.tags,
			position = excluded.position
	`)
	if err != nil {
		return fmt.Errorf("store: prepare job import: %w", err)
	}
	defer jobStmt.Close()
	for _, j := range jobs {
		tagsJSON, _ := json.Marshal(models.NormalizeTags(j.Tags))
		status := j.Status
		if status == "" {
			status = models.JobActive
		}
		if _, err := jobStmt.ExecContext(ctx, j.ID, j.Title, j.Slug, status, string(tagsJSON), j.Order); err != nil {
			return fmt.Errorf("store: import job %d: %w", j.ID, err)
		}
	}

	candStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (id, name, email, stage, job_id) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name   = excluded.name,
			email  = excluded.email,
			stage  = excluded.stage,
			job_id = excluded.job_id
	`)
	if err != nil {
		return fmt.Errorf("store: prepare candidate import: %w", err)
	}
	defer candStmt.Close()
	for _, c := range candidates {
		if _, err := candStmt.ExecContext(ctx, c.ID, c.Name, c.Email, c.Stage, c.JobID); err != nil {
			return fmt.Errorf("store: import candidate %d: %w", c.ID, err)
		}
	}

	all, err := allJobs(ctx, tx)
	if err != nil {
		return err
	}
	renumbered := slices.Clone(all)
	for i := range renumbered {
		renumbered[i].Order = i + 1
	}
	if err := writePositions(ctx, tx, renumbered); err != nil {
		return err
	}
	return tx.Commit()
}
