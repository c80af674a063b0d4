package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/reorder"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (models.Job, error) {
	var (
		j    models.Job
		tags string
	)
	if err := s.Scan(&j.ID, &j.Title, &j.Slug, &j.Status, &tags, &j.Order); err != nil {
		return j, err
	}
	if err := json.Unmarshal([]byte(tags), &j.Tags); err != nil {
		return j, fmt.Errorf("store: decode tags of job %d: %w", j.ID, err)
	}
	if j.Tags == nil {
		j.Tags = []string{}
	}
	return j, nil
}

const jobColumns = `id, title, slug, status, tags, position`

// ListJobs returns one page of jobs ordered by position, filtered by status
// and a case-insensitive title substring.
func (db *DB) ListJobs(ctx context.Context, q models.JobQuery) (models.JobPage, error) {
	q = q.Normalize()
	where := `WHERE (? = '' OR status = ?) AND (? = '' OR instr(lower(title), lower(?)) > 0)`
	args := []any{q.Status, q.Status, q.Search, q.Search}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM jobs `+where, args...).Scan(&total); err != nil {
		return models.JobPage{}, fmt.Errorf("store: count jobs: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs `+where+` ORDER BY position, id LIMIT ? OFFSET ?`,
		append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return models.JobPage{}, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	page := models.JobPage{Jobs: []models.Job{}, TotalCount: total}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return models.JobPage{}, err
		}
		page.Jobs = append(page.Jobs, j)
	}
	return page, rows.Err()
}

// GetJob returns a single job.
func (db *DB) GetJob(ctx context.Context, id int64) (models.Job, error) {
	j, err := scanJob(db.conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, fmt.Errorf("store: job %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("store: get job: %w", err)
	}
	return j, nil
}

// CountJobs returns the number of jobs.
func (db *DB) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count jobs: %w", err)
	}
	return n, nil
}

// CreateJob appends an active job at the end of the board.
func (db *DB) CreateJob(ctx context.Context, d models.JobDraft) (models.Job, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return models.Job{}, fmt.Errorf("store: job title is required: %w", apperr.ErrValidation)
	}
	slug := strings.TrimSpace(d.Slug)
	if slug == "" {
		slug = models.Slugify(title)
	}
	tags := models.NormalizeTags(d.Tags)
	tagsJSON, _ := json.Marshal(tags)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Job{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM jobs`).Scan(&count); err != nil {
		return models.Job{}, fmt.Errorf("store: count jobs: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (title, slug, status, tags, position) VALUES (?, ?, ?, ?, ?)`,
		title, slug, models.JobActive, string(tagsJSON), count+1)
	if err != nil {
		return models.Job{}, fmt.Errorf("store: insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Job{}, fmt.Errorf("store: job id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Job{}, fmt.Errorf("store: commit: %w", err)
	}
	return models.Job{ID: id, Title: title, Slug: slug, Status: models.JobActive, Tags: tags, Order: count + 1}, nil
}

// UpdateJob applies a partial update to a job.
func (db *DB) UpdateJob(ctx context.Context, id int64, p models.JobPatch) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: job %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: get job: %w", err)
	}
	next := p.ApplyTo(cur)
	if strings.TrimSpace(next.Title) == "" {
		return fmt.Errorf("store: job title is required: %w", apperr.ErrValidation)
	}
	tagsJSON, _ := json.Marshal(next.Tags)
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET title = ?, slug = ?, status = ?, tags = ? WHERE id = ?`,
		next.Title, next.Slug, next.Status, string(tagsJSON), id); err != nil {
		return fmt.Errorf("store: update job: %w", err)
	}
	return tx.Commit()
}

// ReorderJob moves job fromID to the 1-based position toOrder and renumbers
// every job so positions stay exactly 1..N.
func (db *DB) ReorderJob(ctx context.Context, fromID int64, toOrder int) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	jobs, err := allJobs(ctx, tx)
	if err != nil {
		return err
	}
	moved, err := reorder.Jobs(jobs, fromID, toOrder)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := writePositions(ctx, tx, moved); err != nil {
		return err
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func allJobs(ctx context.Context, q querier) ([]models.Job, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("store: all jobs: %w", err)
	}
	defer rows.Close()
	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func writePositions(ctx context.Context, q querier, jobs []models.Job) error {
	for _, j := range jobs {
		if _, err := q.ExecContext(ctx, `UPDATE jobs SET position = ? WHERE id = ?`, j.Order, j.ID); err != nil {
			return fmt.Errorf("store: write position of job %d: %w", j.ID, err)
		}
	}
	return nil
}
