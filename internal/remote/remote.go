// Package remote defines the boundary between the client-side cache and the
// authoritative record store, plus the adapters that sit on it.
package remote

import (
	"context"

	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/sse"
)

// Write operation names, used for fault rates, metrics and notifications.
const (
	OpCreateJob      = "jobs.create"
	OpUpdateJob      = "jobs.update"
	OpReorderJob     = "jobs.reorder"
	OpCandidateStage = "candidates.stage"
	OpAddNote        = "candidates.note"
	OpPutAssessment  = "assessments.put"
	OpSubmit         = "assessments.submit"
)

// Ops lists every write operation.
var Ops = []string{OpCreateJob, OpUpdateJob, OpReorderJob, OpCandidateStage, OpAddNote, OpPutAssessment, OpSubmit}

// Store is the set of operations the authoritative store serves.
type Store interface {
	ListJobs(ctx context.Context, q models.JobQuery) (models.JobPage, error)
	GetJob(ctx context.Context, id int64) (models.Job, error)
	CreateJob(ctx context.Context, d models.JobDraft) (models.Job, error)
	UpdateJob(ctx context.Context, id int64, p models.JobPatch) error
	ReorderJob(ctx context.Context, fromID int64, toOrder int) error

	ListCandidates(ctx context.Context, stage string) ([]models.Candidate, error)
	GetCandidate(ctx context.Context, id int64) (models.Candidate, error)
	UpdateCandidateStage(ctx context.Context, id int64, stage models.Stage) error
	Timeline(ctx context.Context, candidateID int64) ([]models.TimelineEvent, error)
	AddNote(ctx context.Context, candidateID int64, content string) (models.TimelineEvent, error)

	GetAssessment(ctx context.Context, jobID int64) (models.Assessment, error)
	PutAssessment(ctx context.Context, jobID int64, config []models.Question) (models.Assessment, error)
	SubmitAssessment(ctx context.Context, d models.SubmissionDraft) (models.Submission, error)
	ListSubmissions(ctx context.Context, jobID int64) ([]models.Submission, error)
}

// EventSource streams change notifications until ctx is done or fn fails.
type EventSource interface {
	Events(ctx context.Context, fn func(sse.Event) error) error
}
