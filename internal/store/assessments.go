package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
)

// GetAssessment returns the question config of a job.
func (db *DB) GetAssessment(ctx context.Context, jobID int64) (models.Assessment, error) {
	var (
		raw string
		a   = models.Assessment{JobID: jobID}
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT config, updated_at FROM assessments WHERE job_id = ?`, jobID).Scan(&raw, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Assessment{}, fmt.Errorf("store: assessment for job %d: %w", jobID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Assessment{}, fmt.Errorf("store: get assessment: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &a.Config); err != nil {
		return models.Assessment{}, fmt.Errorf("store: decode assessment config: %w", err)
	}
	if a.Config == nil {
		a.Config = []models.Question{}
	}
	return a, nil
}

// PutAssessment creates the job's assessment or replaces its config.
func (db *DB) PutAssessment(ctx context.Context, jobID int64, config []models.Question) (models.Assessment, error) {
	if config == nil {
		config = []models.Question{}
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return models.Assessment{}, fmt.Errorf("store: encode assessment config: %w", err)
	}
	now := db.now()
	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO assessments (job_id, config, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			config     = excluded.config,
			updated_at = excluded.updated_at
	`, jobID, string(raw), now); err != nil {
		return models.Assessment{}, fmt.Errorf("store: upsert assessment: %w", err)
	}
	return models.Assessment{JobID: jobID, Config: models.CloneQuestions(config), UpdatedAt: now}, nil
}

// SubmitAssessment records a candidate's responses.
func (db *DB) SubmitAssessment(ctx context.Context, d models.SubmissionDraft) (models.Submission, error) {
	responses := d.Responses
	if responses == nil {
		responses = map[string]string{}
	}
	raw, err := json.Marshal(responses)
	if err != nil {
		return models.Submission{}, fmt.Errorf("store: encode responses: %w", err)
	}
	s := models.Submission{JobID: d.JobID, CandidateID: d.CandidateID, Responses: responses, Timestamp: db.now()}
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO submissions (job_id, candidate_id, responses, created_at) VALUES (?, ?, ?, ?)`,
		s.JobID, s.CandidateID, string(raw), s.Timestamp)
	if err != nil {
		return models.Submission{}, fmt.Errorf("store: insert submission: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return models.Submission{}, fmt.Errorf("store: submission id: %w", err)
	}
	return s, nil
}

// ListSubmissions returns a job's submissions, oldest first.
func (db *DB) ListSubmissions(ctx context.Context, jobID int64) ([]models.Submission, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, job_id, candidate_id, responses, created_at FROM submissions
		 WHERE job_id = ? ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("store: list submissions: %w", err)
	}
	defer rows.Close()

	out := []models.Submission{}
	for rows.Next() {
		var (
			s   models.Submission
			raw string
			ts  time.Time
		)
		if err := rows.Scan(&s.ID, &s.JobID, &s.CandidateID, &raw, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &s.Responses); err != nil {
			return nil, fmt.Errorf("store: decode responses of submission %d: %w", s.ID, err)
		}
		s.Timestamp = ts
		out = append(out, s)
	}
	return out, rows.Err()
}
