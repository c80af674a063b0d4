package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/sse"
)

// HTTP is a Store backed by the REST API served by package api.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP creates a client for the API at baseURL (scheme and host, without
// the /api prefix). A nil client uses http.DefaultClient.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{base: strings.TrimRight(baseURL, "/"), client: client}
}

type errResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+"/api"+path, rd)
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %v: %w", method, path, err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return statusError(method, path, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusError maps an HTTP status back to the error taxonomy.
func statusError(method, path string, code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	var kind error
	switch {
	case code == http.StatusNotFound:
		kind = apperr.ErrNotFound
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		kind = apperr.ErrValidation
	case code == http.StatusConflict:
		kind = apperr.ErrConflict
	case code >= 500:
		kind = apperr.ErrTransient
	default:
		return fmt.Errorf("remote: %s %s: unexpected status %d: %s", method, path, code, msg)
	}
	return fmt.Errorf("remote: %s %s: %s: %w", method, path, msg, kind)
}

func (h *HTTP) ListJobs(ctx context.Context, q models.JobQuery) (models.JobPage, error) {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	var page models.JobPage
	err := h.do(ctx, http.MethodGet, "/jobs?"+v.Encode(), nil, &page)
	return page, err
}

func (h *HTTP) GetJob(ctx context.Context, id int64) (models.Job, error) {
	var j models.Job
	err := h.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d", id), nil, &j)
	return j, err
}

func (h *HTTP) CreateJob(ctx context.Context, d models.JobDraft) (models.Job, error) {
	var j models.Job
	err := h.do(ctx, http.MethodPost, "/jobs", d, &j)
	return j, err
}

func (h *HTTP) UpdateJob(ctx context.Context, id int64, p models.JobPatch) error {
	return h.do(ctx, http.MethodPatch, fmt.Sprintf("/jobs/%d", id), p, &successResponse{})
}

func (h *HTTP) ReorderJob(ctx context.Context, fromID int64, toOrder int) error {
	body := map[string]any{"fromId": fromID, "toOrder": toOrder}
	return h.do(ctx, http.MethodPatch, fmt.Sprintf("/jobs/%d/reorder", fromID), body, &successResponse{})
}

func (h *HTTP) ListCandidates(ctx context.Context, stage string) ([]models.Candidate, error) {
	path := "/candidates"
	if stage != "" {
		path += "?stage=" + url.QueryEscape(stage)
	}
	var out []models.Candidate
	err := h.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (h *HTTP) GetCandidate(ctx context.Context, id int64) (models.Candidate, error) {
	var c models.Candidate
	err := h.do(ctx, http.MethodGet, fmt.Sprintf("/candidates/%d", id), nil, &c)
	return c, err
}

func (h *HTTP) UpdateCandidateStage(ctx context.Context, id int64, stage models.Stage) error {
	body := map[string]string{"stage": string(stage)}
	return h.do(ctx, http.MethodPatch, fmt.Sprintf("/candidates/%d", id), body, &successResponse{})
}

func (h *HTTP) Timeline(ctx context.Context, candidateID int64) ([]models.TimelineEvent, error) {
	var out []models.TimelineEvent
	err := h.do(ctx, http.MethodGet, fmt.Sprintf("/candidates/%d/timeline", candidateID), nil, &out)
	return out, err
}

func (h *HTTP) AddNote(ctx context.Context, candidateID int64, content string) (models.TimelineEvent, error) {
	var ev models.TimelineEvent
	body := map[string]string{"content": content}
	err := h.do(ctx, http.MethodPost, fmt.Sprintf("/candidates/%d/timeline", candidateID), body, &ev)
	return ev, err
}

func (h *HTTP) GetAssessment(ctx context.Context, jobID int64) (models.Assessment, error) {
	var a models.Assessment
	err := h.do(ctx, http.MethodGet, fmt.Sprintf("/assessments/%d", jobID), nil, &a)
	return a, err
}

func (h *HTTP) PutAssessment(ctx context.Context, jobID int64, config []models.Question) (models.Assessment, error) {
	var a models.Assessment
	body := map[string]any{"config": config}
	err := h.do(ctx, http.MethodPut, fmt.Sprintf("/assessments/%d", jobID), body, &a)
	return a, err
}

func (h *HTTP) SubmitAssessment(ctx context.Context, d models.SubmissionDraft) (models.Submission, error) {
	var out struct {
		Success    bool              `json:"success"`
		ID         int64             `json:"id"`
		Submission models.Submission `json:"submission"`
	}
	body := map[string]any{"candidateId": d.CandidateID, "responses": d.Responses}
	if err := h.do(ctx, http.MethodPost, fmt.Sprintf("/assessments/%d/submit", d.JobID), body, &out); err != nil {
		return models.Submission{}, err
	}
	return out.Submission, nil
}

func (h *HTTP) ListSubmissions(ctx context.Context, jobID int64) ([]models.Submission, error) {
	var out []models.Submission
	err := h.do(ctx, http.MethodGet, fmt.Sprintf("/assessments/%d/submissions", jobID), nil, &out)
	return out, err
}

// Events subscribes to the server's change stream and calls fn for every
// event until ctx is done, the stream ends or fn returns an error.
func (h *HTTP) Events(ctx context.Context, fn func(sse.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(http.MethodGet, "/events", resp.StatusCode, "")
	}
	err = sse.Read(resp.Body, fn)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

var (
	_ Store       = (*HTTP)(nil)
	_ EventSource = (*HTTP)(nil)
)
