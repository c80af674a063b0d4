package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
)

const candidateColumns = `id, name, email, stage, job_id`

func scanCandidate(s rowScanner) (models.Candidate, error) {
	var c models.Candidate
	err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Stage, &c.JobID)
	return c, err
}

// ListCandidates returns candidates ordered by id. An empty stage (or "all")
// returns every candidate.
func (db *DB) ListCandidates(ctx context.Context, stage string) ([]models.Candidate, error) {
	if stage == "all" {
		stage = ""
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE (? = '' OR stage = ?) ORDER BY id`, stage, stage)
	if err != nil {
		return nil, fmt.Errorf("store: list candidates: %w", err)
	}
	defer rows.Close()

	out := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCandidate returns a single candidate.
func (db *DB) GetCandidate(ctx context.Context, id int64) (models.Candidate, error) {
	c, err := scanCandidate(db.conn.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Candidate{}, fmt.Errorf("store: candidate %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("store: get candidate: %w", err)
	}
	return c, nil
}

// UpdateCandidateStage moves a candidate to stage and appends the matching
// timeline event in the same transaction.
func (db *DB) UpdateCandidateStage(ctx context.Context, id int64, stage models.Stage) error {
	if _, err := models.ParseStage(string(stage)); err != nil {
		return fmt.Errorf("store: %v: %w", err, apperr.ErrValidation)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO timeline_events (candidate_id, event, content, created_at) VALUES (?, ?, '', ?)`,
		id, models.StageEvent(stage), db.now()); err != nil {
		return fmt.Errorf("store: append stage event: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE candidates SET stage = ? WHERE id = ?`, stage, id)
	if err != nil {
		return fmt.Errorf("store: update candidate: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("store: update candidate: %w", err)
	} else if n == 0 {
		return fmt.Errorf("store: candidate %d: %w", id, apperr.ErrNotFound)
	}
	return tx.Commit()
}

// Timeline returns a candidate's events, oldest first.
func (db *DB) Timeline(ctx context.Context, candidateID int64) ([]models.TimelineEvent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, candidate_id, event, content, created_at FROM timeline_events
		 WHERE candidate_id = ? ORDER BY created_at, id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("store: timeline: %w", err)
	}
	defer rows.Close()

	out := []models.TimelineEvent{}
	for rows.Next() {
		var e models.TimelineEvent
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.Event, &e.Content, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddNote appends a free-text note to a candidate's timeline.
func (db *DB) AddNote(ctx context.Context, candidateID int64, content string) (models.TimelineEvent, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.TimelineEvent{}, fmt.Errorf("store: note content is required: %w", apperr.ErrValidation)
	}
	if _, err := db.GetCandidate(ctx, candidateID); err != nil {
		return models.TimelineEvent{}, err
	}
	ev := models.TimelineEvent{CandidateID: candidateID, Event: models.NoteEvent, Content: content, Timestamp: db.now()}
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO timeline_events (candidate_id, event, content, created_at) VALUES (?, ?, ?, ?)`,
		ev.CandidateID, ev.Event, ev.Content, ev.Timestamp)
	if err != nil {
		return models.TimelineEvent{}, fmt.Errorf("store: add note: %w", err)
	}
	if ev.ID, err = res.LastInsertId(); err != nil {
		return models.TimelineEvent{}, fmt.Errorf("store: note id: %w", err)
	}
	return ev, nil
}
