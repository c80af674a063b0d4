package api

import (
	"encoding/json"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/talentflow/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func stageValues() []any {
	out := make([]any, len(models.Stages))
	for i, s := range models.Stages {
		out[i] = string(s)
	}
	return out
}

// CreateJobRequest is the request body for creating a job.
type CreateJobRequest struct {
	Title string   `json:"title" example:"Senior Go Engineer" validate:"required"`
	Slug  string   `json:"slug,omitempty" example:"senior-go-engineer"`
	Tags  []string `json:"tags,omitempty" example:"Remote,Full-time"`
}

// Validate validates the request.
func (r *CreateJobRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Slug, validation.Match(slugPattern)),
	)
}

func (r *CreateJobRequest) draft() models.JobDraft {
	return models.JobDraft{Title: r.Title, Slug: r.Slug, Tags: r.Tags}
}

// UpdateJobRequest is a partial job update; omitted fields are unchanged.
type UpdateJobRequest struct {
	Title  *string   `json:"title,omitempty" example:"Staff Go Engineer"`
	Slug   *string   `json:"slug,omitempty" example:"staff-go-engineer"`
	Status *string   `json:"status,omitempty" example:"archived" enums:"active,archived"`
	Tags   *[]string `json:"tags,omitempty"`
}

// Validate validates the request.
func (r *UpdateJobRequest) Validate() error {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Slug, validation.NilOrNotEmpty, validation.Match(slugPattern)),
		validation.Field(&r.Status, validation.In(string(models.JobActive), string(models.JobArchived))),
	)
}

func (r *UpdateJobRequest) patch() models.JobPatch {
	p := models.JobPatch{Title: r.Title, Slug: r.Slug, Tags: r.Tags}
	if r.Status != nil {
		st := models.JobStatus(*r.Status)
		p.Status = &st
	}
	return p
}

// ReorderJobRequest moves a job to a new 1-based position.
type ReorderJobRequest struct {
	FromID  int64 `json:"fromId" example:"25"`
	ToOrder int   `json:"toOrder" example:"1" validate:"required"`
}

// Validate validates the request.
func (r *ReorderJobRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ToOrder, validation.Required, validation.Min(1)),
	)
}

// UpdateCandidateRequest moves a candidate to another stage.
type UpdateCandidateRequest struct {
	Stage string `json:"stage" example:"screen" validate:"required"`
}

// Validate validates the request.
func (r *UpdateCandidateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Stage, validation.Required, validation.In(stageValues()...)),
	)
}

// AddNoteRequest is the request body for a timeline note.
type AddNoteRequest struct {
	Content string `json:"content" example:"Strong systems background" validate:"required"`
}

// Validate validates the request.
func (r *AddNoteRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required, validation.Length(1, 5000)),
	)
}

// PutAssessmentRequest replaces a job's question config. Config is kept raw
// so it can be checked against the JSON schema before decoding.
type PutAssessmentRequest struct {
	Config json.RawMessage `json:"config" swaggertype:"array,object" validate:"required"`
}

// Validate validates the request.
func (r *PutAssessmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Config, validation.Required),
	)
}

// SubmitAssessmentRequest carries one candidate's answers.
type SubmitAssessmentRequest struct {
	CandidateID int64             `json:"candidateId" example:"101" validate:"required"`
	Responses   map[string]string `json:"responses"`
}

// Validate validates the request.
func (r *SubmitAssessmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CandidateID, validation.Required, validation.Min(int64(1))),
	)
}

// SuccessResponse acknowledges a write without a body.
type SuccessResponse struct {
	Success bool `json:"success" example:"true" validate:"required"`
}

// SubmitAssessmentResponse is returned after a recorded submission.
type SubmitAssessmentResponse struct {
	Success    bool              `json:"success" example:"true" validate:"required"`
	ID         int64             `json:"id" example:"1" validate:"required"`
	Submission models.Submission `json:"submission" validate:"required"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Name     string `json:"name" example:"0b5e...-cv.pdf" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	Checksum string `json:"checksum" validate:"required"`
	URL      string `json:"url" example:"/api/uploads/0b5e...-cv.pdf" validate:"required"`
}
