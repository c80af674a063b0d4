package remote

import (
	"context"

	"github.com/starford/talentflow/internal/faults"
	"github.com/starford/talentflow/internal/models"
)

type faulty struct {
	next Store
	inj  *faults.Injector
}

// WithFaults wraps s so every call is delayed and every write may fail
// according to inj. A failed write never reaches s.
func WithFaults(s Store, inj *faults.Injector) Store {
	if inj == nil {
		return s
	}
	return &faulty{next: s, inj: inj}
}

func (f *faulty) write(ctx context.Context, op string) error {
	if err := f.inj.Delay(ctx); err != nil {
		return err
	}
	return f.inj.Fail(op)
}

func (f *faulty) ListJobs(ctx context.Context, q models.JobQuery) (models.JobPage, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return models.JobPage{}, err
	}
	return f.next.ListJobs(ctx, q)
}

func (f *faulty) GetJob(ctx context.Context, id int64) (models.Job, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return models.Job{}, err
	}
	return f.next.GetJob(ctx, id)
}

func (f *faulty) CreateJob(ctx context.Context, d models.JobDraft) (models.Job, error) {
	if err := f.write(ctx, OpCreateJob); err != nil {
		return models.Job{}, err
	}
	return f.next.CreateJob(ctx, d)
}

func (f *faulty) UpdateJob(ctx context.Context, id int64, p models.JobPatch) error {
	if err := f.write(ctx, OpUpdateJob); err != nil {
		return err
	}
	return f.next.UpdateJob(ctx, id, p)
}

func (f *faulty) ReorderJob(ctx context.Context, fromID int64, toOrder int) error {
	if err := f.write(ctx, OpReorderJob); err != nil {
		return err
	}
	return f.next.ReorderJob(ctx, fromID, toOrder)
}

func (f *faulty) ListCandidates(ctx context.Context, stage string) ([]models.Candidate, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return nil, err
	}
	return f.next.ListCandidates(ctx, stage)
}

func (f *faulty) GetCandidate(ctx context.Context, id int64) (models.Candidate, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return models.Candidate{}, err
	}
	return f.next.GetCandidate(ctx, id)
}

func (f *faulty) UpdateCandidateStage(ctx context.Context, id int64, stage models.Stage) error {
	if err := f.write(ctx, OpCandidateStage); err != nil {
		return err
	}
	return f.next.UpdateCandidateStage(ctx, id, stage)
}

func (f *faulty) Timeline(ctx context.Context, candidateID int64) ([]models.TimelineEvent, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return nil, err
	}
	return f.next.Timeline(ctx, candidateID)
}

func (f *faulty) AddNote(ctx context.Context, candidateID int64, content string) (models.TimelineEvent, error) {
	if err := f.write(ctx, OpAddNote); err != nil {
		return models.TimelineEvent{}, err
	}
	return f.next.AddNote(ctx, candidateID, content)
}

func (f *faulty) GetAssessment(ctx context.Context, jobID int64) (models.Assessment, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return models.Assessment{}, err
	}
	return f.next.GetAssessment(ctx, jobID)
}

func (f *faulty) PutAssessment(ctx context.Context, jobID int64, config []models.Question) (models.Assessment, error) {
	if err := f.write(ctx, OpPutAssessment); err != nil {
		return models.Assessment{}, err
	}
	return f.next.PutAssessment(ctx, jobID, config)
}

func (f *faulty) SubmitAssessment(ctx context.Context, d models.SubmissionDraft) (models.Submission, error) {
	if err := f.write(ctx, OpSubmit); err != nil {
		return models.Submission{}, err
	}
	return f.next.SubmitAssessment(ctx, d)
}

func (f *faulty) ListSubmissions(ctx context.Context, jobID int64) ([]models.Submission, error) {
	if err := f.inj.Delay(ctx); err != nil {
		return nil, err
	}
	return f.next.ListSubmissions(ctx, jobID)
}
