package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// pub receives a change event after each successful write.
// sseHandler, if non-nil, is mounted at GET /events.
// files, if non-nil, backs the uploads routes.
func NewRouter(s remote.Store, pub Publisher, sseHandler http.Handler, files storage.Provider) chi.Router {
	h := NewHandler(s, pub)

	r := chi.NewRouter()
	r.NotFound(notFound)

	// Jobs.
	r.Get("/jobs", h.ListJobs)
	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs/{id}", h.GetJob)
	r.Patch("/jobs/{id}", h.UpdateJob)
	r.Patch("/jobs/{id}/reorder", h.ReorderJob)

	// Candidates.
	r.Get("/candidates", h.ListCandidates)
	r.Get("/candidates/{id}", h.GetCandidate)
	r.Patch("/candidates/{id}", h.UpdateCandidate)
	r.Get("/candidates/{id}/timeline", h.Timeline)
	r.Post("/candidates/{id}/timeline", h.AddNote)

	// Assessments.
	r.Get("/assessments/{jobId}", h.GetAssessment)
	r.Put("/assessments/{jobId}", h.PutAssessment)
	r.Post("/assessments/{jobId}/submit", h.SubmitAssessment)
	r.Get("/assessments/{jobId}/submissions", h.ListSubmissions)

	if files != nil {
		uh := NewUploadHandler(files)
		r.Get("/uploads", uh.ListUploads)
		r.Post("/uploads", uh.Upload)
		r.Get("/uploads/{name}", uh.ServeFile)
		r.Delete("/uploads/{name}", uh.DeleteFile)
	}

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
