package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/sse"
)

// Publisher receives a change event after every successful write.
type Publisher interface {
	PublishChange(kind string, c sse.Change)
}

type nopPublisher struct{}

func (nopPublisher) PublishChange(string, sse.Change) {}

// Handler holds API route handlers.
type Handler struct {
	store  remote.Store
	events Publisher
}

// NewHandler creates a new Handler. A nil pub drops change events.
func NewHandler(s remote.Store, pub Publisher) *Handler {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Handler{store: s, events: pub}
}

// idParam parses a positive integer URL parameter, writing 400 when invalid.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid %s", name)))
		return 0, false
	}
	return id, true
}

// ListJobs handles GET /api/jobs.
//
//	@Summary		List jobs with search, status filter and pagination
//	@Tags			jobs
//	@Produce		json
//	@Param			page		query		int		false	"1-based page"
//	@Param			pageSize	query		int		false	"Page size"
//	@Param			search		query		string	false	"Case-insensitive title filter"
//	@Param			status		query		string	false	"Status filter"	Enums(all, active, archived)
//	@Success		200			{object}	models.JobPage
//	@Failure		400			{object}	errResponse
//	@Router			/jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	query := models.JobQuery{Page: page, PageSize: pageSize, Search: q.Get("search"), Status: q.Get("status")}.Normalize()
	if query.Status != "" {
		if _, err := models.ParseJobStatus(query.Status); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}

	jobs, err := h.store.ListJobs(r.Context(), query)
	if err != nil {
		writeError(w, "list jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/jobs/{id}.
//
//	@Summary		Get a single job
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		int	true	"Job id"
//	@Success		200	{object}	models.Job
//	@Failure		404	{object}	errResponse
//	@Router			/jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	j, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// CreateJob handles POST /api/jobs.
//
//	@Summary		Create a job at the end of the board
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateJobRequest	true	"Job to create"
//	@Success		201		{object}	models.Job
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !decode(w, r, &req) {
		return
	}
	j, err := h.store.CreateJob(r.Context(), req.draft())
	if err != nil {
		writeError(w, "create job", err)
		return
	}
	h.events.PublishChange(sse.JobCreated, sse.Change{ID: j.ID})
	writeJSON(w, http.StatusCreated, j)
}

// UpdateJob handles PATCH /api/jobs/{id}.
//
//	@Summary		Partially update a job
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Job id"
//	@Param			body	body		UpdateJobRequest	true	"Fields to change"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/jobs/{id} [patch]
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateJobRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.UpdateJob(r.Context(), id, req.patch()); err != nil {
		writeError(w, "update job", err)
		return
	}
	h.events.PublishChange(sse.JobUpdated, sse.Change{ID: id})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ReorderJob handles PATCH /api/jobs/{id}/reorder.
//
//	@Summary		Move a job to a new position
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Job id"
//	@Param			body	body		ReorderJobRequest	true	"Target position"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/jobs/{id}/reorder [patch]
func (h *Handler) ReorderJob(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req ReorderJobRequest
	if !decode(w, r, &req) {
		return
	}
	if req.FromID != 0 && req.FromID != id {
		writeJSON(w, http.StatusBadRequest, errorBody("fromId does not match the job in the path"))
		return
	}
	if err := h.store.ReorderJob(r.Context(), id, req.ToOrder); err != nil {
		writeError(w, "reorder job", err)
		return
	}
	h.events.PublishChange(sse.JobReordered, sse.Change{ID: id})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ListCandidates handles GET /api/candidates.
//
//	@Summary		List candidates, optionally of one stage
//	@Tags			candidates
//	@Produce		json
//	@Param			stage	query	string	false	"Stage filter"	Enums(all, applied, screen, tech, offer, hired, rejected)
//	@Success		200		{array}	models.Candidate
//	@Failure		400		{object}	errResponse
//	@Router			/candidates [get]
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage == "all" {
		stage = ""
	}
	if stage != "" {
		if _, err := models.ParseStage(stage); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}
	list, err := h.store.ListCandidates(r.Context(), stage)
	if err != nil {
		writeError(w, "list candidates", err)
		return
	}
	if list == nil {
		list = []models.Candidate{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCandidate handles GET /api/candidates/{id}.
//
//	@Summary		Get a single candidate
//	@Tags			candidates
//	@Produce		json
//	@Param			id	path		int	true	"Candidate id"
//	@Success		200	{object}	models.Candidate
//	@Failure		404	{object}	errResponse
//	@Router			/candidates/{id} [get]
func (h *Handler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCandidate(r.Context(), id)
	if err != nil {
		writeError(w, "get candidate", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCandidate handles PATCH /api/candidates/{id}.
//
//	@Summary		Move a candidate to another stage
//	@Tags			candidates
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Candidate id"
//	@Param			body	body		UpdateCandidateRequest	true	"Target stage"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/candidates/{id} [patch]
func (h *Handler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateCandidateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.UpdateCandidateStage(r.Context(), id, models.Stage(req.Stage)); err != nil {
		writeError(w, "update candidate", err)
		return
	}
	h.events.PublishChange(sse.CandidateUpdated, sse.Change{ID: id})
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Timeline handles GET /api/candidates/{id}/timeline.
//
//	@Summary		List a candidate's timeline, oldest first
//	@Tags			candidates
//	@Produce		json
//	@Param			id	path	int	true	"Candidate id"
//	@Success		200	{array}	models.TimelineEvent
//	@Router			/candidates/{id}/timeline [get]
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	events, err := h.store.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, "timeline", err)
		return
	}
	if events == nil {
		events = []models.TimelineEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// AddNote handles POST /api/candidates/{id}/timeline.
//
//	@Summary		Append a note to a candidate's timeline
//	@Tags			candidates
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Candidate id"
//	@Param			body	body		AddNoteRequest	true	"Note"
//	@Success		201		{object}	models.TimelineEvent
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/candidates/{id}/timeline [post]
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req AddNoteRequest
	if !decode(w, r, &req) {
		return
	}
	ev, err := h.store.AddNote(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, "add note", err)
		return
	}
	h.events.PublishChange(sse.NoteAdded, sse.Change{ID: id})
	writeJSON(w, http.StatusCreated, ev)
}

// notFound is the fallback for unknown API routes.
func notFound(w http.ResponseWriter, r *http.Request) {
	slog.Debug("unknown route", slog.String("path", r.URL.Path))
	writeError(w, "route", apperr.ErrNotFound)
}
