// Package mcpserver provides an MCP (Model Context Protocol) server
// that drives the TalentFlow client over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/form"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/pipeline"
	"github.com/starford/talentflow/internal/storage"
)

// Server wraps the MCP server with TalentFlow tools.
type Server struct {
	mcp    *server.MCPServer
	client *pipeline.Client
	files  storage.Provider
}

// New creates a new MCP server with all TalentFlow tools registered. files
// may be nil, in which case upload_file is not offered.
func New(client *pipeline.Client, files storage.Provider) *Server {
	s := &Server{client: client, files: files}

	s.mcp = server.NewMCPServer(
		"TalentFlow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List one page of jobs sorted by board order."),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("pageSize", mcp.Description("Jobs per page (default 10)")),
		mcp.WithString("search", mcp.Description("Case-insensitive title filter")),
		mcp.WithString("status", mcp.Description("active, archived or all")),
	), s.listJobs)

	s.mcp.AddTool(mcp.NewTool("get_job",
		mcp.WithDescription("Read one job."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Job id")),
	), s.getJob)

	s.mcp.AddTool(mcp.NewTool("create_job",
		mcp.WithDescription("Create an active job at the end of the board. "+
			"The slug defaults to a kebab-case form of the title."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Job title")),
		mcp.WithString("slug", mcp.Description("URL slug")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags, e.g. Remote, Full-time")),
	), s.createJob)

	s.mcp.AddTool(mcp.NewTool("update_job",
		mcp.WithDescription("Change the title, slug, status or tags of a job. Omitted fields are kept."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Job id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("slug", mcp.Description("New slug")),
		mcp.WithString("status", mcp.Description("active or archived")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags replacing the current set")),
	), s.updateJob)

	s.mcp.AddTool(mcp.NewTool("toggle_job_archive",
		mcp.WithDescription("Archive an active job or restore an archived one."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Job id")),
	), s.toggleArchive)

	s.mcp.AddTool(mcp.NewTool("reorder_job",
		mcp.WithDescription("Move a job to a 1-based position on the board. Later jobs shift to make room."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Job id")),
		mcp.WithNumber("toOrder", mcp.Required(), mcp.Description("Target position")),
	), s.reorderJob)

	s.mcp.AddTool(mcp.NewTool("kanban_board",
		mcp.WithDescription("Candidates grouped by hiring stage in funnel order."),
		mcp.WithString("search", mcp.Description("Case-insensitive name or email filter")),
	), s.kanbanBoard)

	s.mcp.AddTool(mcp.NewTool("move_candidate",
		mcp.WithDescription("Move a candidate to another stage. The move is recorded on the timeline."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Candidate id")),
		mcp.WithString("stage", mcp.Required(), mcp.Description(
			"One of "+strings.Join(stageNames(), ", "))),
	), s.moveCandidate)

	s.mcp.AddTool(mcp.NewTool("candidate_timeline",
		mcp.WithDescription("A candidate's stage changes and notes, oldest first."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Candidate id")),
	), s.candidateTimeline)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Append a note to a candidate's timeline."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Candidate id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("get_assessment",
		mcp.WithDescription("Read a job's assessment questions."),
		mcp.WithNumber("jobId", mcp.Required(), mcp.Description("Job id")),
	), s.getAssessment)

	s.mcp.AddTool(mcp.NewTool("save_assessment",
		mcp.WithDescription("Replace a job's assessment. config is a JSON array of questions: "+
			`{"id","type","label","required","options":[{"id","value"}],"min","max","condition":{"questionId"}}. `+
			"Types: "+strings.Join(questionTypeNames(), ", ")+"."),
		mcp.WithNumber("jobId", mcp.Required(), mcp.Description("Job id")),
		mcp.WithString("config", mcp.Required(), mcp.Description("Question config as JSON")),
	), s.saveAssessment)

	s.mcp.AddTool(mcp.NewTool("submit_assessment",
		mcp.WithDescription("Submit a candidate's answers. Answers are validated before anything is sent; "+
			"multi-choice answers may be arrays of option values."),
		mcp.WithNumber("jobId", mcp.Required(), mcp.Description("Job id")),
		mcp.WithNumber("candidateId", mcp.Required(), mcp.Description("Candidate id")),
		mcp.WithObject("responses", mcp.Required(), mcp.Description("Answers keyed by question id")),
	), s.submitAssessment)

	if files != nil {
		s.mcp.AddTool(mcp.NewTool("upload_file",
			mcp.WithDescription("Store a file for a file-upload answer and return the name to submit."),
			mcp.WithString("dataUri", mcp.Required(), mcp.Description("data:<mime>;base64,<data>")),
			mcp.WithString("filename", mcp.Description("Original file name")),
		), s.uploadFile)
	}

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func stageNames() []string {
	out := make([]string, len(models.Stages))
	for i, st := range models.Stages {
		out[i] = string(st)
	}
	return out
}

func questionTypeNames() []string {
	out := make([]string, len(models.QuestionTypes))
	for i, t := range models.QuestionTypes {
		out[i] = string(t)
	}
	return out
}

// toolError reports a failed operation, naming its category so a rolled-back
// write reads differently from a rejected input.
func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %v", op, apperr.Kind(err), err))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func requireID(req mcp.CallToolRequest, name string) (int64, error) {
	f, err := req.RequireFloat(name)
	if err != nil {
		return 0, err
	}
	if f < 1 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return int64(f), nil
}

// optionalString returns the argument and whether it was given.
func optionalString(req mcp.CallToolRequest, name string) (string, bool) {
	v, ok := req.GetArguments()[name].(string)
	return v, ok
}

func (s *Server) listJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := models.JobQuery{
		Page:     int(req.GetFloat("page", 1)),
		PageSize: int(req.GetFloat("pageSize", 0)),
		Search:   req.GetString("search", ""),
		Status:   req.GetString("status", ""),
	}
	if q.Status != "" && q.Status != "all" {
		if _, err := models.ParseJobStatus(q.Status); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	page, err := s.client.Jobs(ctx, q)
	if err != nil {
		return toolError("list jobs", err), nil
	}
	return jsonResult(page), nil
}

func (s *Server) getJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	job, err := s.client.Job(ctx, id)
	if err != nil {
		return toolError("get job", err), nil
	}
	return jsonResult(job), nil
}

func (s *Server) createJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	job, err := s.client.CreateJob(ctx, models.JobDraft{
		Title: title,
		Slug:  req.GetString("slug", ""),
		Tags:  models.SplitTags(req.GetString("tags", "")),
	})
	if err != nil {
		return toolError("create job", err), nil
	}
	return jsonResult(job), nil
}

func (s *Server) updateJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var patch models.JobPatch
	if v, ok := optionalString(req, "title"); ok {
		patch.Title = &v
	}
	if v, ok := optionalString(req, "slug"); ok {
		patch.Slug = &v
	}
	if v, ok := optionalString(req, "status"); ok {
		st, err := models.ParseJobStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		patch.Status = &st
	}
	if v, ok := optionalString(req, "tags"); ok {
		tags := models.SplitTags(v)
		patch.Tags = &tags
	}
	if patch.IsEmpty() {
		return mcp.NewToolResultError("nothing to update"), nil
	}
	if err := s.client.UpdateJob(ctx, id, patch); err != nil {
		return toolError("update job", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated job %d", id)), nil
}

func (s *Server) toggleArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := s.client.ToggleArchive(ctx, id)
	if err != nil {
		return toolError("toggle archive", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("job %d is now %s", id, status)), nil
}

func (s *Server) reorderJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := requireID(req, "toOrder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.client.MoveJob(ctx, id, int(to)); err != nil {
		return toolError("reorder job", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved job %d to position %d", id, to)), nil
}

func (s *Server) kanbanBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := s.client.Board(ctx, req.GetString("search", ""))
	if err != nil {
		return toolError("kanban board", err), nil
	}
	return jsonResult(board), nil
}

func (s *Server) moveCandidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stage, err := req.RequireString("stage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.client.MoveCandidate(ctx, id, stage); err != nil {
		return toolError("move candidate", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved candidate %d to %s", id, stage)), nil
}

func (s *Server) candidateTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	events, err := s.client.Timeline(ctx, id)
	if err != nil {
		return toolError("candidate timeline", err), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("no timeline events"), nil
	}
	return jsonResult(events), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := s.client.AddNote(ctx, id, content)
	if err != nil {
		return toolError("add note", err), nil
	}
	return jsonResult(ev), nil
}

func (s *Server) getAssessment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := requireID(req, "jobId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.client.Assessment(ctx, jobID)
	if err != nil {
		return toolError("get assessment", err), nil
	}
	return jsonResult(a), nil
}

func (s *Server) saveAssessment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := requireID(req, "jobId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("config")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	questions, err := form.ParseConfig([]byte(raw))
	if err != nil {
		return toolError("save assessment", err), nil
	}
	a, err := s.client.SaveAssessment(ctx, jobID, questions)
	if err != nil {
		return toolError("save assessment", err), nil
	}
	return jsonResult(a), nil
}

func (s *Server) submitAssessment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := requireID(req, "jobId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	candidateID, err := requireID(req, "candidateId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, ok := req.GetArguments()["responses"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("responses must be an object keyed by question id"), nil
	}
	responses, err := answerStrings(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sub, err := s.client.SubmitAssessment(ctx, jobID, candidateID, responses)
	if err != nil {
		return toolError("submit assessment", err), nil
	}
	return jsonResult(sub), nil
}

// answerStrings flattens JSON answers into the string form the form model
// validates: numbers are formatted, arrays joined as multi-choice values.
func answerStrings(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for id, v := range raw {
		switch a := v.(type) {
		case nil:
		case string:
			out[id] = a
		case float64:
			out[id] = strconv.FormatFloat(a, 'f', -1, 64)
		case bool:
			out[id] = strconv.FormatBool(a)
		case []any:
			values := make([]string, 0, len(a))
			for _, item := range a {
				str, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("answer %q: choices must be strings", id)
				}
				values = append(values, str)
			}
			out[id] = form.JoinChoices(values)
		default:
			return nil, fmt.Errorf("answer %q: unsupported value %T", id, v)
		}
	}
	return out, nil
}
