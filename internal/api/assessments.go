package api

import (
	"net/http"

	"github.com/starford/talentflow/internal/form"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/sse"
)

// GetAssessment handles GET /api/assessments/{jobId}.
//
//	@Summary		Get a job's assessment config
//	@Tags			assessments
//	@Produce		json
//	@Param			jobId	path		int	true	"Job id"
//	@Success		200		{object}	models.Assessment
//	@Failure		404		{object}	errResponse
//	@Router			/assessments/{jobId} [get]
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	jobID, ok := idParam(w, r, "jobId")
	if !ok {
		return
	}
	a, err := h.store.GetAssessment(r.Context(), jobID)
	if err != nil {
		writeError(w, "get assessment", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// PutAssessment handles PUT /api/assessments/{jobId}.
//
//	@Summary		Replace a job's assessment config
//	@Tags			assessments
//	@Accept			json
//	@Produce		json
//	@Param			jobId	path		int						true	"Job id"
//	@Param			body	body		PutAssessmentRequest	true	"Question config"
//	@Success		200		{object}	models.Assessment
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/assessments/{jobId} [put]
func (h *Handler) PutAssessment(w http.ResponseWriter, r *http.Request) {
	jobID, ok := idParam(w, r, "jobId")
	if !ok {
		return
	}
	var req PutAssessmentRequest
	if !decode(w, r, &req) {
		return
	}
	questions, err := form.ParseConfig(req.Config)
	if err != nil {
		writeError(w, "parse assessment", err)
		return
	}
	if _, err := h.store.GetJob(r.Context(), jobID); err != nil {
		writeError(w, "put assessment", err)
		return
	}
	a, err := h.store.PutAssessment(r.Context(), jobID, questions)
	if err != nil {
		writeError(w, "put assessment", err)
		return
	}
	h.events.PublishChange(sse.AssessmentSaved, sse.Change{JobID: jobID})
	writeJSON(w, http.StatusOK, a)
}

// SubmitAssessment handles POST /api/assessments/{jobId}/submit.
//
//	@Summary		Record a candidate's answers
//	@Description	Answers are validated against the visible questions; hidden answers are dropped.
//	@Tags			assessments
//	@Accept			json
//	@Produce		json
//	@Param			jobId	path		int							true	"Job id"
//	@Param			body	body		SubmitAssessmentRequest		true	"Answers"
//	@Success		201		{object}	SubmitAssessmentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/assessments/{jobId}/submit [post]
func (h *Handler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	jobID, ok := idParam(w, r, "jobId")
	if !ok {
		return
	}
	var req SubmitAssessmentRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.store.GetAssessment(r.Context(), jobID)
	if err != nil {
		writeError(w, "submit assessment", err)
		return
	}
	if err := form.Validate(a.Config, req.Responses); err != nil {
		writeError(w, "submit assessment", err)
		return
	}
	sub, err := h.store.SubmitAssessment(r.Context(), models.SubmissionDraft{
		JobID:       jobID,
		CandidateID: req.CandidateID,
		Responses:   form.Collect(a.Config, req.Responses),
	})
	if err != nil {
		writeError(w, "submit assessment", err)
		return
	}
	h.events.PublishChange(sse.SubmissionCreated, sse.Change{ID: sub.ID, JobID: jobID})
	writeJSON(w, http.StatusCreated, SubmitAssessmentResponse{Success: true, ID: sub.ID, Submission: sub})
}

// ListSubmissions handles GET /api/assessments/{jobId}/submissions.
//
//	@Summary		List a job's submissions
//	@Tags			assessments
//	@Produce		json
//	@Param			jobId	path	int	true	"Job id"
//	@Success		200		{array}	models.Submission
//	@Router			/assessments/{jobId}/submissions [get]
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	jobID, ok := idParam(w, r, "jobId")
	if !ok {
		return
	}
	subs, err := h.store.ListSubmissions(r.Context(), jobID)
	if err != nil {
		writeError(w, "list submissions", err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}
