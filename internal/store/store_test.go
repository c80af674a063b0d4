package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "talentflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedJobs(t *testing.T, db *DB, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		title := "Job " + string(rune('A'+i-1))
		if _, err := db.CreateJob(ctx, models.JobDraft{Title: title, Tags: []string{"Remote"}}); err != nil {
			t.Fatalf("CreateJob %d: %v", i, err)
		}
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"jobs", "candidates", "timeline_events", "assessments", "submissions"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestCreateJobDefaults(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	j, err := db.CreateJob(ctx, models.JobDraft{Title: "  Senior Go Engineer ", Tags: []string{"Remote", " ", "Remote"}})
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != models.JobActive || j.Order != 1 || j.Slug != "senior-go-engineer" {
		t.Fatalf("unexpected job %+v", j)
	}
	if len(j.Tags) != 1 || j.Tags[0] != "Remote" {
		t.Fatalf("tags = %v", j.Tags)
	}

	second, err := db.CreateJob(ctx, models.JobDraft{Title: "Designer", Slug: "ux"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Order != 2 || second.Slug != "ux" {
		t.Fatalf("unexpected second job %+v", second)
	}

	got, err := db.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Senior Go Engineer" || got.Order != 1 {
		t.Fatalf("GetJob = %+v", got)
	}
}

func TestCreateJobRequiresTitle(t *testing.T) {
	db := testDB(t)
	_, err := db.CreateJob(context.Background(), models.JobDraft{Title: "   "})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetJob(context.Background(), 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListJobsFilterAndPaging(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedJobs(t, db, 12)

	archived := models.JobArchived
	if err := db.UpdateJob(ctx, 3, models.JobPatch{Status: &archived}); err != nil {
		t.Fatal(err)
	}

	page, err := db.ListJobs(ctx, models.JobQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 12 || len(page.Jobs) != models.DefaultPageSize {
		t.Fatalf("page 1: total=%d len=%d", page.TotalCount, len(page.Jobs))
	}
	for i, j := range page.Jobs {
		if j.Order != i+1 {
			t.Fatalf("job at %d has order %d", i, j.Order)
		}
	}

	page2, err := db.ListJobs(ctx, models.JobQuery{Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Jobs) != 2 || page2.Jobs[0].Order != 11 {
		t.Fatalf("page 2 = %+v", page2.Jobs)
	}

	active, err := db.ListJobs(ctx, models.JobQuery{Status: "active", PageSize: 50})
	if err != nil {
		t.Fatal(err)
	}
	if active.TotalCount != 11 {
		t.Fatalf("active total = %d", active.TotalCount)
	}

	all, err := db.ListJobs(ctx, models.JobQuery{Status: "all", PageSize: 50})
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCount != 12 {
		t.Fatalf("all total = %d", all.TotalCount)
	}

	found, err := db.ListJobs(ctx, models.JobQuery{Search: "job c"})
	if err != nil {
		t.Fatal(err)
	}
	if found.TotalCount != 1 || found.Jobs[0].Title != "Job C" {
		t.Fatalf("search = %+v", found)
	}
}

func TestUpdateJob(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedJobs(t, db, 1)

	title := "Renamed"
	tags := []string{"Contract", "Full-time"}
	if err := db.UpdateJob(ctx, 1, models.JobPatch{Title: &title, Tags: &tags}); err != nil {
		t.Fatal(err)
	}
	j, err := db.GetJob(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if j.Title != "Renamed" || len(j.Tags) != 2 || j.Order != 1 {
		t.Fatalf("after update: %+v", j)
	}

	if err := db.UpdateJob(ctx, 99, models.JobPatch{Title: &title}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	empty := ""
	if err := db.UpdateJob(ctx, 1, models.JobPatch{Title: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReorderLastToFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedJobs(t, db, 25)

	if err := db.ReorderJob(ctx, 25, 1); err != nil {
		t.Fatal(err)
	}
	page, err := db.ListJobs(ctx, models.JobQuery{PageSize: 25})
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{25}
	for i := int64(1); i <= 24; i++ {
		want = append(want, i)
	}
	for i, j := range page.Jobs {
		if j.ID != want[i] || j.Order != i+1 {
			t.Fatalf("position %d: id=%d order=%d, want id=%d", i, j.ID, j.Order, want[i])
		}
	}
}

func TestReorderUnknownJob(t *testing.T) {
	db := testDB(t)
	seedJobs(t, db, 3)
	if err := db.ReorderJob(context.Background(), 7, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCandidateStageAppendsEvent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return now })

	if err := db.Import(ctx, nil, []models.Candidate{
		{ID: 1, Name: "Ada", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1},
		{ID: 2, Name: "Bob", Email: "bob@example.com", Stage: models.StageTech, JobID: 1},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateCandidateStage(ctx, 1, models.StageScreen); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetCandidate(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if c.Stage != models.StageScreen {
		t.Fatalf("stage = %s", c.Stage)
	}
	events, err := db.Timeline(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || !strings.Contains(events[0].Event, `"screen"`) || !events[0].Timestamp.Equal(now) {
		t.Fatalf("timeline = %+v", events)
	}

	screen, err := db.ListCandidates(ctx, "screen")
	if err != nil {
		t.Fatal(err)
	}
	if len(screen) != 1 || screen[0].ID != 1 {
		t.Fatalf("screen candidates = %+v", screen)
	}
	all, err := db.ListCandidates(ctx, "all")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all candidates = %d", len(all))
	}
}

func TestCandidateStageNotFoundLeavesNoEvent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpdateCandidateStage(ctx, 5, models.StageHired); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	events, err := db.Timeline(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if err := db.UpdateCandidateStage(ctx, 5, "lunch"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddNoteAndTimelineOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	db.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	if err := db.Import(ctx, nil, []models.Candidate{{ID: 1, Name: "Ada", Stage: models.StageApplied, JobID: 1}}); err != nil {
		t.Fatal(err)
	}

	if _, err := db.AddNote(ctx, 1, "first"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateCandidateStage(ctx, 1, models.StageOffer); err != nil {
		t.Fatal(err)
	}
	note, err := db.AddNote(ctx, 1, "  second ")
	if err != nil {
		t.Fatal(err)
	}
	if note.ID == 0 || note.Event != models.NoteEvent || note.Content != "second" {
		t.Fatalf("note = %+v", note)
	}

	events, err := db.Timeline(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || events[0].Content != "first" || events[1].Event != models.StageEvent(models.StageOffer) || events[2].Content != "second" {
		t.Fatalf("timeline = %+v", events)
	}

	if _, err := db.AddNote(ctx, 1, " "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := db.AddNote(ctx, 9, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssessmentRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetAssessment(ctx, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	lo, hi := 0.0, 20.0
	config := []models.Question{
		{ID: "q1", Type: models.ShortText, Label: "Name", Required: true},
		{ID: "q2", Type: models.SingleChoice, Label: "Level", Options: []models.Option{{ID: "o1", Value: "Junior"}, {ID: "o2", Value: "Senior"}}},
		{ID: "q3", Type: models.Numeric, Label: "Years", Min: &lo, Max: &hi, Condition: &models.Condition{QuestionID: "q2"}},
	}
	if _, err := db.PutAssessment(ctx, 1, config); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetAssessment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Config) != 3 {
		t.Fatalf("config len = %d", len(got.Config))
	}
	for i, q := range got.Config {
		if q.ID != config[i].ID || q.Type != config[i].Type || q.Label != config[i].Label {
			t.Fatalf("question %d = %+v", i, q)
		}
	}
	if *got.Config[2].Max != 20 || got.Config[2].Condition.QuestionID != "q2" || got.Config[1].Options[1].Value != "Senior" {
		t.Fatalf("lost fields: %+v", got.Config)
	}

	if _, err := db.PutAssessment(ctx, 1, config[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetAssessment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Config) != 1 {
		t.Fatalf("upsert did not replace config: %+v", got.Config)
	}
}

func TestSubmissions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s, err := db.SubmitAssessment(ctx, models.SubmissionDraft{JobID: 2, CandidateID: 7, Responses: map[string]string{"q1": "Ada"}})
	if err != nil {
		t.Fatal(err)
	}
	if s.ID == 0 {
		t.Fatal("expected submission id")
	}
	if _, err := db.SubmitAssessment(ctx, models.SubmissionDraft{JobID: 3, CandidateID: 7}); err != nil {
		t.Fatal(err)
	}

	subs, err := db.ListSubmissions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Responses["q1"] != "Ada" || subs[0].CandidateID != 7 {
		t.Fatalf("submissions = %+v", subs)
	}
}

func TestImportRenumbersJobs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	jobs := []models.Job{
		{ID: 1, Title: "A", Slug: "a", Order: 10},
		{ID: 2, Title: "B", Slug: "b", Order: 3, Status: models.JobArchived},
		{ID: 3, Title: "C", Slug: "c", Order: 7},
	}
	if err := db.Import(ctx, jobs, nil); err != nil {
		t.Fatal(err)
	}
	page, err := db.ListJobs(ctx, models.JobQuery{})
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []int64{2, 3, 1}
	for i, j := range page.Jobs {
		if j.ID != wantIDs[i] || j.Order != i+1 {
			t.Fatalf("position %d: %+v", i, j)
		}
	}
	if page.Jobs[1].Status != models.JobActive {
		t.Fatalf("missing status should default to active, got %s", page.Jobs[1].Status)
	}

	// Re-import updates in place.
	jobs[0].Title = "A2"
	if err := db.Import(ctx, jobs[:1], nil); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("count = %d", n)
	}
	j, err := db.GetJob(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if j.Title != "A2" {
		t.Fatalf("title = %q", j.Title)
	}
}
