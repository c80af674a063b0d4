package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/talentflow/internal/faults"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/pipeline"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/storage"
	"github.com/starford/talentflow/internal/store"
	"github.com/starford/talentflow/internal/testutil"
)

func testServer(t *testing.T) (*Server, *store.DB, storage.Provider) {
	t.Helper()
	db := testutil.TestDB(t)
	_, files := testutil.TestFS(t)
	client := pipeline.New(db, pipeline.WithSettleDelay(time.Millisecond))
	t.Cleanup(client.Wait)
	return New(client, files), db, files
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_jobs":          srv.listJobs,
		"get_job":            srv.getJob,
		"create_job":         srv.createJob,
		"update_job":         srv.updateJob,
		"toggle_job_archive": srv.toggleArchive,
		"reorder_job":        srv.reorderJob,
		"kanban_board":       srv.kanbanBoard,
		"move_candidate":     srv.moveCandidate,
		"candidate_timeline": srv.candidateTimeline,
		"add_note":           srv.addNote,
		"get_assessment":     srv.getAssessment,
		"save_assessment":    srv.saveAssessment,
		"submit_assessment":  srv.submitAssessment,
		"upload_file":        srv.uploadFile,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	var v T
	if r.IsError {
		t.Fatalf("tool failed: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func TestCreateAndGetJob(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "create_job", map[string]interface{}{
		"title": "Senior Go Engineer",
		"tags":  "Remote, Full-time, Remote",
	})
	job := decodeResult[models.Job](t, r)
	if job.Slug != "senior-go-engineer" || job.Status != models.JobActive || len(job.Tags) != 2 {
		t.Errorf("created job = %+v", job)
	}

	r = callTool(t, srv, "get_job", map[string]interface{}{"id": float64(job.ID)})
	got := decodeResult[models.Job](t, r)
	if got.Title != "Senior Go Engineer" {
		t.Errorf("get job title = %q", got.Title)
	}
}

func TestCreateJobRequiresTitle(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "create_job", map[string]interface{}{"title": "   "})
	if !r.IsError || !strings.Contains(resultText(r), "validation") {
		t.Errorf("result = %q, want validation error", resultText(r))
	}
}

func TestGetJobMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_job", map[string]interface{}{"id": float64(99)})
	if !r.IsError || !strings.Contains(resultText(r), "not_found") {
		t.Errorf("result = %q, want not found", resultText(r))
	}

	r = callTool(t, srv, "get_job", map[string]interface{}{"id": 1.5})
	if !r.IsError {
		t.Error("fractional id accepted")
	}
}

func TestListUpdateAndArchive(t *testing.T) {
	srv, db, _ := testServer(t)
	testutil.Seed(t, db, 12)

	page := decodeResult[models.JobPage](t, callTool(t, srv, "list_jobs", map[string]interface{}{"page": float64(2)}))
	if page.TotalCount != 12 || len(page.Jobs) != 2 || page.Jobs[0].ID != 11 {
		t.Errorf("page 2 = %+v", page)
	}

	r := callTool(t, srv, "update_job", map[string]interface{}{"id": float64(3), "title": "Renamed", "tags": "Contract"})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	j, _ := db.GetJob(context.Background(), 3)
	if j.Title != "Renamed" || len(j.Tags) != 1 || j.Tags[0] != "Contract" {
		t.Errorf("stored job = %+v", j)
	}

	if r := callTool(t, srv, "update_job", map[string]interface{}{"id": float64(3)}); !r.IsError {
		t.Error("empty update accepted")
	}
	if r := callTool(t, srv, "update_job", map[string]interface{}{"id": float64(3), "status": "paused"}); !r.IsError {
		t.Error("unknown status accepted")
	}

	r = callTool(t, srv, "toggle_job_archive", map[string]interface{}{"id": float64(3)})
	if resultText(r) != "job 3 is now archived" {
		t.Errorf("toggle = %q", resultText(r))
	}
	archived := decodeResult[models.JobPage](t, callTool(t, srv, "list_jobs", map[string]interface{}{"status": "archived"}))
	if archived.TotalCount != 1 || archived.Jobs[0].ID != 3 {
		t.Errorf("archived = %+v", archived)
	}
}

func TestReorderJob(t *testing.T) {
	srv, db, _ := testServer(t)
	testutil.Seed(t, db, 5)

	r := callTool(t, srv, "reorder_job", map[string]interface{}{"id": float64(5), "toOrder": float64(1)})
	if r.IsError {
		t.Fatalf("reorder: %s", resultText(r))
	}
	page, _ := db.ListJobs(context.Background(), models.JobQuery{Page: 1, PageSize: 10})
	var ids []int64
	for _, j := range page.Jobs {
		ids = append(ids, j.ID)
	}
	want := []int64{5, 1, 2, 3, 4}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestKanbanAndMoveCandidate(t *testing.T) {
	srv, db, _ := testServer(t)
	testutil.Seed(t, db, 1,
		models.Candidate{ID: 1, Name: "Ada Lovelace", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1},
		models.Candidate{ID: 2, Name: "Alan Turing", Email: "alan@example.com", Stage: models.StageTech, JobID: 1},
	)

	r := callTool(t, srv, "move_candidate", map[string]interface{}{"id": float64(1), "stage": "offer"})
	if r.IsError {
		t.Fatalf("move: %s", resultText(r))
	}
	if r := callTool(t, srv, "move_candidate", map[string]interface{}{"id": float64(1), "stage": "limbo"}); !r.IsError {
		t.Error("unknown stage accepted")
	}

	board := decodeResult[pipeline.Board](t, callTool(t, srv, "kanban_board", map[string]interface{}{"search": "ADA"}))
	if board.Total != 1 {
		t.Fatalf("board total = %d", board.Total)
	}
	for _, col := range board.Columns {
		if col.Stage == models.StageOffer && (len(col.Candidates) != 1 || col.Candidates[0].ID != 1) {
			t.Errorf("offer column = %+v", col.Candidates)
		}
	}

	events := decodeResult[[]models.TimelineEvent](t, callTool(t, srv, "candidate_timeline", map[string]interface{}{"id": float64(1)}))
	if len(events) != 1 || events[0].Event != models.StageEvent(models.StageOffer) {
		t.Errorf("timeline = %+v", events)
	}
	if r := callTool(t, srv, "candidate_timeline", map[string]interface{}{"id": float64(2)}); resultText(r) != "no timeline events" {
		t.Errorf("empty timeline = %q", resultText(r))
	}
}

func TestAddNote(t *testing.T) {
	srv, db, _ := testServer(t)
	testutil.Seed(t, db, 1, models.Candidate{ID: 1, Name: "Ada", Email: "ada@example.com", Stage: models.StageScreen, JobID: 1})

	ev := decodeResult[models.TimelineEvent](t, callTool(t, srv, "add_note", map[string]interface{}{"id": float64(1), "content": "Strong systems background"}))
	if ev.Event != models.NoteEvent || ev.Content != "Strong systems background" {
		t.Errorf("note = %+v", ev)
	}
	stored, _ := db.Timeline(context.Background(), 1)
	if len(stored) != 1 || stored[0].Content != "Strong systems background" {
		t.Errorf("stored timeline = %+v", stored)
	}
}

const numericConfig = `[{"id":"years","type":"numeric","label":"Years of Go","required":true,"min":0,"max":10},
{"id":"langs","type":"multi-choice","label":"Languages","options":[{"id":"a","value":"Go"},{"id":"b","value":"Rust"}]}]`

func TestAssessmentRoundTrip(t *testing.T) {
	srv, db, _ := testServer(t)
	testutil.Seed(t, db, 1, models.Candidate{ID: 1, Name: "Ada", Email: "ada@example.com", Stage: models.StageTech, JobID: 1})

	r := callTool(t, srv, "save_assessment", map[string]interface{}{"jobId": float64(1), "config": numericConfig})
	saved := decodeResult[models.Assessment](t, r)
	if len(saved.Config) != 2 {
		t.Fatalf("saved config = %+v", saved.Config)
	}

	got := decodeResult[models.Assessment](t, callTool(t, srv, "get_assessment", map[string]interface{}{"jobId": float64(1)}))
	if got.Config[0].Label != "Years of Go" {
		t.Errorf("assessment = %+v", got)
	}

	r = callTool(t, srv, "submit_assessment", map[string]interface{}{
		"jobId": float64(1), "candidateId": float64(1),
		"responses": map[string]interface{}{"years": float64(42)},
	})
	if !r.IsError || !strings.Contains(resultText(r), "validation") {
		t.Fatalf("out of range = %q", resultText(r))
	}
	if subs, _ := db.ListSubmissions(context.Background(), 1); len(subs) != 0 {
		t.Fatalf("invalid answers were sent: %+v", subs)
	}

	sub := decodeResult[models.Submission](t, callTool(t, srv, "submit_assessment", map[string]interface{}{
		"jobId": float64(1), "candidateId": float64(1),
		"responses": map[string]interface{}{"years": float64(7), "langs": []interface{}{"Go", "Rust"}},
	}))
	if sub.Responses["years"] != "7" || sub.Responses["langs"] != "Go\nRust" {
		t.Errorf("submission = %+v", sub.Responses)
	}
}

func TestSaveAssessmentRejectsBadConfig(t *testing.T) {
	srv, db, _ := testServer(t)
	testutil.Seed(t, db, 1)

	for _, cfg := range []string{
		`not json`,
		`[{"id":"q","type":"essay","label":"Q"}]`,
		`[{"id":"q","type":"single-choice","label":"Q"}]`,
	} {
		r := callTool(t, srv, "save_assessment", map[string]interface{}{"jobId": float64(1), "config": cfg})
		if !r.IsError {
			t.Errorf("config %s accepted", cfg)
		}
	}
}

func TestRolledBackWriteIsReported(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1, models.Candidate{ID: 1, Name: "Ada", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1})
	client := pipeline.New(remote.WithFaults(db, faults.Always()), pipeline.WithSettleDelay(time.Millisecond))
	srv := New(client, nil)

	r := callTool(t, srv, "move_candidate", map[string]interface{}{"id": float64(1), "stage": "hired"})
	if !r.IsError || !strings.Contains(resultText(r), "transient") {
		t.Errorf("result = %q, want transient failure", resultText(r))
	}
	c, _ := db.GetCandidate(context.Background(), 1)
	if c.Stage != models.StageApplied {
		t.Errorf("stage = %s after failed move", c.Stage)
	}
}

func TestUploadFile(t *testing.T) {
	srv, _, files := testServer(t)
	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("resume"))

	r := callTool(t, srv, "upload_file", map[string]interface{}{"dataUri": uri, "filename": "../cv"})
	res := decodeResult[uploadResult](t, r)
	if !strings.HasSuffix(res.Name, "-cv.txt") || res.Size != 6 {
		t.Errorf("upload = %+v", res)
	}
	data, err := files.Read(res.Name)
	if err != nil || string(data) != "resume" {
		t.Errorf("stored = %q, %v", data, err)
	}

	if r := callTool(t, srv, "upload_file", map[string]interface{}{"dataUri": "https://example.com/a.png"}); !r.IsError {
		t.Error("non data URI accepted")
	}
}
