package pipeline

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/faults"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/mutation"
	"github.com/starford/talentflow/internal/querycache"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/sse"
	"github.com/starford/talentflow/internal/testutil"
)

// gated blocks candidate stage writes until release is closed.
type gated struct {
	remote.Store
	entered chan struct{}
	release chan struct{}
	submits atomic.Int32
}

func newGated(s remote.Store) *gated {
	return &gated{Store: s, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gated) UpdateCandidateStage(ctx context.Context, id int64, stage models.Stage) error {
	g.entered <- struct{}{}
	<-g.release
	return g.Store.UpdateCandidateStage(ctx, id, stage)
}

func (g *gated) SubmitAssessment(ctx context.Context, d models.SubmissionDraft) (models.Submission, error) {
	g.submits.Add(1)
	return g.Store.SubmitAssessment(ctx, d)
}

func ids(jobs []models.Job) []int64 {
	out := make([]int64, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestMoveCandidateIsVisibleBeforeServerConfirms(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1,
		models.Candidate{ID: 7, Name: "Ada", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1},
		models.Candidate{ID: 8, Name: "Bob", Email: "bob@example.com", Stage: models.StageApplied, JobID: 1},
	)
	g := newGated(db)
	c := New(g, WithSettleDelay(time.Millisecond))
	ctx := context.Background()

	_, err := c.Candidate(ctx, 7)
	require.NoError(t, err)
	_, err = c.Timeline(ctx, 7)
	require.NoError(t, err)
	applied, err := c.Candidates(ctx, "applied")
	require.NoError(t, err)
	require.Len(t, applied, 2)
	_, err = c.Candidates(ctx, "screen")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.MoveCandidate(ctx, 7, "screen") }()
	<-g.entered

	cand, err := c.Candidate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StageScreen, cand.Stage)
	applied, _ = c.Candidates(ctx, "applied")
	screen, _ := c.Candidates(ctx, "screen")
	assert.Len(t, applied, 1)
	require.Len(t, screen, 1)
	assert.Equal(t, int64(7), screen[0].ID)
	events, _ := c.Timeline(ctx, 7)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Event, "screen")
	assert.Negative(t, events[0].ID)

	close(g.release)
	require.NoError(t, <-done)
	c.Wait()

	stored, err := db.GetCandidate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StageScreen, stored.Stage)
	events, err = c.Timeline(ctx, 7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Positive(t, events[0].ID)
	assert.Equal(t, models.StageEvent(models.StageScreen), events[0].Event)
}

func TestMoveCandidateFailureRevertsAndNotifies(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1, models.Candidate{ID: 7, Name: "Ada", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1})

	var mu sync.Mutex
	var notes []mutation.Notification
	c := New(remote.WithFaults(db, faults.Always()),
		WithSettleDelay(time.Millisecond),
		WithNotifier(mutation.NotifierFunc(func(n mutation.Notification) {
			mu.Lock()
			notes = append(notes, n)
			mu.Unlock()
		})))
	ctx := context.Background()

	_, err := c.Candidate(ctx, 7)
	require.NoError(t, err)
	_, err = c.Timeline(ctx, 7)
	require.NoError(t, err)

	err = c.MoveCandidate(ctx, 7, "screen")
	require.ErrorIs(t, err, apperr.ErrTransient)

	cand, err := c.Candidate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StageApplied, cand.Stage)
	events, err := c.Timeline(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, events)
	stored, err := db.Timeline(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, stored)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notes, 1)
	assert.Equal(t, mutation.RolledBack, notes[0].Outcome)
	assert.Equal(t, remote.OpCandidateStage, notes[0].Op)
}

func TestMoveCandidateRejectsUnknownStage(t *testing.T) {
	db := testutil.TestDB(t)
	c := New(db)
	err := c.MoveCandidate(context.Background(), 1, "limbo")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReorderJobConvergesWithServer(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 25)
	c := New(db, WithSettleDelay(5*time.Millisecond))
	ctx := context.Background()
	q := models.JobQuery{Page: 1, PageSize: 25}

	_, err := c.Jobs(ctx, q)
	require.NoError(t, err)
	require.NoError(t, c.ReorderJob(ctx, q, 25, 1))

	want := append([]int64{25}, ids(seqJobs(24))...)
	page, err := c.Jobs(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, want, ids(page.Jobs))

	c.Wait()
	page, err = c.Jobs(ctx, q)
	require.NoError(t, err)
	server, err := db.ListJobs(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, ids(server.Jobs), ids(page.Jobs))
	assert.Equal(t, want, ids(server.Jobs))
	for i, j := range page.Jobs {
		assert.Equal(t, i+1, j.Order)
	}
}

func seqJobs(n int) []models.Job {
	out := make([]models.Job, n)
	for i := range out {
		out[i] = models.Job{ID: int64(i + 1), Order: i + 1}
	}
	return out
}

func TestReorderJobFailureRestoresPage(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 5)
	c := New(remote.WithFaults(db, faults.Always()))
	ctx := context.Background()
	q := models.JobQuery{Page: 1, PageSize: 10}

	before, err := c.Jobs(ctx, q)
	require.NoError(t, err)
	require.ErrorIs(t, c.ReorderJob(ctx, q, 5, 2), apperr.ErrTransient)

	after, err := c.Jobs(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReorderJobNotOnPage(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 3)
	c := New(db)
	err := c.ReorderJob(context.Background(), models.JobQuery{}, 1, 42)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMoveJobClampsToBoard(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 3)
	c := New(db, WithSettleDelay(time.Millisecond))
	ctx := context.Background()

	_, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	require.NoError(t, c.MoveJob(ctx, 1, 99))

	page, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids(page.Jobs))
	c.Wait()

	j, err := db.GetJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, j.Order)
}

func TestMoveJobTwiceBeforeSettleMatchesServer(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 5)
	c := New(db, WithSettleDelay(time.Hour))
	ctx := context.Background()

	_, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	_, err = c.Job(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, c.MoveJob(ctx, 5, 1))
	j, err := c.Job(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, j.Order)

	require.NoError(t, c.MoveJob(ctx, 1, 5))

	page, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	server, err := db.ListJobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 2, 3, 4, 1}, ids(server.Jobs))
	assert.Equal(t, ids(server.Jobs), ids(page.Jobs))
	for i, j := range page.Jobs {
		assert.Equal(t, i+1, j.Order)
	}
	j, err = c.Job(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, j.Order)
}

func TestMoveJobClampsWithOnlyFilteredPageCached(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 3)
	c := New(db, WithSettleDelay(time.Hour))
	ctx := context.Background()
	active := models.JobQuery{Status: string(models.JobActive)}

	_, err := c.Jobs(ctx, active)
	require.NoError(t, err)
	_, err = c.Job(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, c.MoveJob(ctx, 1, 99))

	page, err := c.Jobs(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids(page.Jobs))
	orders := make([]int, len(page.Jobs))
	for i, j := range page.Jobs {
		orders[i] = j.Order
	}
	assert.Equal(t, []int{1, 2, 3}, orders)

	j, err := c.Job(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, j.Order)
	stored, err := db.GetJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Order)
}

func TestToggleArchiveFailureRestoresBoard(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 3)
	c := New(remote.WithFaults(db, faults.Always()))
	ctx := context.Background()

	before, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	detail, err := c.Job(ctx, 2)
	require.NoError(t, err)

	status, err := c.ToggleArchive(ctx, 2)
	require.ErrorIs(t, err, apperr.ErrTransient)
	assert.Equal(t, models.JobActive, status)

	after, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
	j, err := c.Job(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, detail, j)
	stored, err := db.GetJob(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.JobActive, stored.Status)
}

func TestUpdateJobPatchesCachedPages(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 3)
	c := New(remote.WithFaults(db, faults.Always()))
	ctx := context.Background()

	_, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	_, err = c.Job(ctx, 2)
	require.NoError(t, err)

	_, err = c.ToggleArchive(ctx, 2)
	require.ErrorIs(t, err, apperr.ErrTransient)
	j, err := c.Job(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.JobActive, j.Status)

	ok := New(db)
	_, err = ok.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	status, err := ok.ToggleArchive(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.JobArchived, status)
	ok.Wait()

	page, err := ok.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, models.JobArchived, page.Jobs[1].Status)
}

func TestCreateJobRequiresTitle(t *testing.T) {
	c := New(testutil.TestDB(t))
	_, err := c.CreateJob(context.Background(), models.JobDraft{Title: "  "})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateJobRefreshesBoard(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 2)
	c := New(db)
	ctx := context.Background()

	_, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	j, err := c.CreateJob(ctx, models.JobDraft{Title: "Platform Engineer"})
	require.NoError(t, err)
	assert.Equal(t, 3, j.Order)
	c.Wait()

	page, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
}

func TestBoardGroupsByStage(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1,
		models.Candidate{ID: 1, Name: "Ada Lovelace", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1},
		models.Candidate{ID: 2, Name: "Grace Hopper", Email: "grace@example.com", Stage: models.StageTech, JobID: 1},
		models.Candidate{ID: 3, Name: "Alan Turing", Email: "alan@example.com", Stage: models.StageTech, JobID: 1},
	)
	c := New(db)

	b, err := c.Board(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, b.Columns, len(models.Stages))
	assert.Equal(t, 3, b.Total)
	assert.Equal(t, models.StageApplied, b.Columns[0].Stage)
	assert.Len(t, b.Columns[2].Candidates, 2)
	assert.NotNil(t, b.Columns[5].Candidates)

	b, err = c.Board(context.Background(), "GRACE")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Total)
	assert.Equal(t, int64(2), b.Columns[2].Candidates[0].ID)
}

func TestAddNote(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1, models.Candidate{ID: 1, Name: "Ada", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1})
	c := New(db)
	ctx := context.Background()

	_, err := c.AddNote(ctx, 1, "   ")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.Timeline(ctx, 1)
	require.NoError(t, err)
	ev, err := c.AddNote(ctx, 1, "strong systems background")
	require.NoError(t, err)
	assert.Positive(t, ev.ID)
	c.Wait()

	events, err := c.Timeline(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.NoteEvent, events[0].Event)
	assert.Equal(t, "strong systems background", events[0].Content)
}

func TestAddNoteFailureDropsProvisionalEvent(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1, models.Candidate{ID: 1, Name: "Ada", Email: "ada@example.com", Stage: models.StageApplied, JobID: 1})
	c := New(remote.WithFaults(db, faults.Always()))
	ctx := context.Background()

	_, err := c.Timeline(ctx, 1)
	require.NoError(t, err)
	_, err = c.AddNote(ctx, 1, "call back on Monday")
	require.ErrorIs(t, err, apperr.ErrTransient)

	events, err := c.Timeline(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, events)
	stored, err := db.Timeline(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func numericQuestion(id string, min, max float64) models.Question {
	return models.Question{ID: id, Type: models.Numeric, Label: "Years of experience", Required: true, Min: &min, Max: &max}
}

func TestSubmitAssessmentValidatesBeforeSending(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1)
	g := newGated(db)
	c := New(g)
	ctx := context.Background()

	_, err := c.SaveAssessment(ctx, 1, []models.Question{numericQuestion("q1", 0, 20)})
	require.NoError(t, err)
	c.Wait()

	_, err = c.SubmitAssessment(ctx, 1, 101, map[string]string{"q1": "25"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = c.SubmitAssessment(ctx, 1, 101, map[string]string{})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, g.submits.Load())

	sub, err := c.SubmitAssessment(ctx, 1, 101, map[string]string{"q1": "7"})
	require.NoError(t, err)
	assert.Positive(t, sub.ID)
	assert.Equal(t, int32(1), g.submits.Load())
	c.Wait()

	subs, err := c.Submissions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "7", subs[0].Responses["q1"])
}

func TestSubmitAssessmentWithoutConfig(t *testing.T) {
	c := New(testutil.TestDB(t))
	_, err := c.SubmitAssessment(context.Background(), 9, 1, nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveAssessmentRejectsBadConfig(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1)
	c := New(db)
	bad := []models.Question{{ID: "q1", Type: models.SingleChoice, Label: "Pick"}}
	bad = append(bad, bad[0])
	_, err := c.SaveAssessment(context.Background(), 1, bad)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = db.GetAssessment(context.Background(), 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveAssessmentFailureRestoresCachedConfig(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1)
	ctx := context.Background()
	_, err := db.PutAssessment(ctx, 1, []models.Question{numericQuestion("q1", 0, 20)})
	require.NoError(t, err)

	c := New(remote.WithFaults(db, faults.Always()))
	before, err := c.Assessment(ctx, 1)
	require.NoError(t, err)

	_, err = c.SaveAssessment(ctx, 1, []models.Question{numericQuestion("q2", 1, 5)})
	require.ErrorIs(t, err, apperr.ErrTransient)

	after, err := c.Assessment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	stored, err := db.GetAssessment(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored.Config, 1)
	assert.Equal(t, "q1", stored.Config[0].ID)
}

func TestSubmitAssessmentFailureDropsProvisionalSubmission(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 1)
	ctx := context.Background()
	_, err := db.PutAssessment(ctx, 1, []models.Question{numericQuestion("q1", 0, 20)})
	require.NoError(t, err)

	c := New(remote.WithFaults(db, faults.Always()))
	_, err = c.Submissions(ctx, 1)
	require.NoError(t, err)

	_, err = c.SubmitAssessment(ctx, 1, 101, map[string]string{"q1": "7"})
	require.ErrorIs(t, err, apperr.ErrTransient)

	subs, err := c.Submissions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, subs)
	stored, err := db.ListSubmissions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestFollowInvalidatesOnChange(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 2)
	c := New(db)
	broker := sse.NewBroker(time.Millisecond)
	t.Cleanup(broker.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Follow(ctx, broker) }()
	require.Eventually(t, func() bool { return broker.ClientCount() == 1 }, time.Second, time.Millisecond)

	page, err := c.Jobs(ctx, models.JobQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)

	j, err := db.CreateJob(ctx, models.JobDraft{Title: "Written elsewhere"})
	require.NoError(t, err)
	broker.PublishChange(sse.JobCreated, sse.Change{ID: j.ID})

	require.Eventually(t, func() bool {
		page, err := c.Jobs(ctx, models.JobQuery{})
		return err == nil && page.TotalCount == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestStaleKeys(t *testing.T) {
	keys := staleKeys(sse.CandidateUpdated, sse.Change{ID: 4})
	assert.True(t, slices.ContainsFunc(keys, func(k querycache.Key) bool { return k.String() == CandidateKey(4).String() }))
	assert.Equal(t, []querycache.Key{{}}, staleKeys(sse.FixturesImported, sse.Change{}))
	assert.Nil(t, staleKeys(sse.BoardUpdated, sse.Change{}))
}
