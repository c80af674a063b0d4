// Package pipeline exposes the hiring pipeline to callers as cached reads and
// optimistic mutations over a remote store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/mutation"
	"github.com/starford/talentflow/internal/querycache"
	"github.com/starford/talentflow/internal/remote"
)

// DefaultSettleDelay is how long reorder and stage moves wait before
// refetching, so the optimistic position stays put while a drop settles.
const DefaultSettleDelay = 250 * time.Millisecond

// Client reads through the query cache and writes through the mutation
// coordinator. All state it serves lives in the cache.
type Client struct {
	remote remote.Store
	cache  *querycache.Cache
	coord  *mutation.Coordinator

	settle   time.Duration
	notifier mutation.Notifier
	log      *slog.Logger
	now      func() time.Time
	tempID   atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) { c.settle = d }
}

// WithNotifier receives a notification for every settled mutation.
func WithNotifier(n mutation.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger shared by the client, its cache and coordinator.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock sets the timestamp source of provisional records.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client over r with a fresh cache.
func New(r remote.Store, opts ...Option) *Client {
	c := &Client{
		remote: r,
		settle: DefaultSettleDelay,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	c.cache = querycache.New(querycache.WithLogger(c.log))
	copts := []mutation.Option{mutation.WithLogger(c.log)}
	if c.notifier != nil {
		copts = append(copts, mutation.WithNotifier(c.notifier))
	}
	c.coord = mutation.New(c.cache, copts...)
	return c
}

// Cache returns the client's query cache.
func (c *Client) Cache() *querycache.Cache { return c.cache }

// Wait blocks until pending reconciliation refetches are done.
func (c *Client) Wait() { c.coord.Wait() }

// provisionalID returns a negative id for optimistic records not yet stored.
func (c *Client) provisionalID() int64 {
	return c.tempID.Add(-1)
}

// Jobs returns one page of the jobs board.
func (c *Client) Jobs(ctx context.Context, q models.JobQuery) (models.JobPage, error) {
	q = q.Normalize()
	page, err := querycache.Get(ctx, c.cache, JobListKey(q), func(ctx context.Context) (models.JobPage, error) {
		return c.remote.ListJobs(ctx, q)
	})
	if err != nil {
		return models.JobPage{}, err
	}
	return page.Clone(), nil
}

// Job returns one job.
func (c *Client) Job(ctx context.Context, id int64) (models.Job, error) {
	j, err := querycache.Get(ctx, c.cache, JobKey(id), func(ctx context.Context) (models.Job, error) {
		return c.remote.GetJob(ctx, id)
	})
	j.Tags = slices.Clone(j.Tags)
	return j, err
}

// Candidates returns the candidates of stage, or all when stage is empty.
func (c *Client) Candidates(ctx context.Context, stage string) ([]models.Candidate, error) {
	key := CandidateListKey(stage)
	stage, _ = key[2].(string)
	list, err := querycache.Get(ctx, c.cache, key, func(ctx context.Context) ([]models.Candidate, error) {
		return c.remote.ListCandidates(ctx, stage)
	})
	return slices.Clone(list), err
}

// Candidate returns one candidate.
func (c *Client) Candidate(ctx context.Context, id int64) (models.Candidate, error) {
	return querycache.Get(ctx, c.cache, CandidateKey(id), func(ctx context.Context) (models.Candidate, error) {
		return c.remote.GetCandidate(ctx, id)
	})
}

// Timeline returns a candidate's events, oldest first.
func (c *Client) Timeline(ctx context.Context, id int64) ([]models.TimelineEvent, error) {
	events, err := querycache.Get(ctx, c.cache, TimelineKey(id), func(ctx context.Context) ([]models.TimelineEvent, error) {
		return c.remote.Timeline(ctx, id)
	})
	return slices.Clone(events), err
}

// Assessment returns a job's question config.
func (c *Client) Assessment(ctx context.Context, jobID int64) (models.Assessment, error) {
	a, err := querycache.Get(ctx, c.cache, AssessmentKey(jobID), func(ctx context.Context) (models.Assessment, error) {
		return c.remote.GetAssessment(ctx, jobID)
	})
	a.Config = models.CloneQuestions(a.Config)
	return a, err
}

// Submissions returns a job's recorded submissions.
func (c *Client) Submissions(ctx context.Context, jobID int64) ([]models.Submission, error) {
	subs, err := querycache.Get(ctx, c.cache, SubmissionsKey(jobID), func(ctx context.Context) ([]models.Submission, error) {
		return c.remote.ListSubmissions(ctx, jobID)
	})
	return slices.Clone(subs), err
}

// Column is one kanban column.
type Column struct {
	Stage      models.Stage       `json:"stage"`
	Candidates []models.Candidate `json:"candidates"`
}

// Board is the kanban view of every candidate.
type Board struct {
	Columns []Column `json:"columns"`
	Total   int      `json:"total"`
}

// Board groups candidates by stage in funnel order. A non-empty search keeps
// candidates whose name or email contains it, ignoring case.
func (c *Client) Board(ctx context.Context, search string) (Board, error) {
	all, err := c.Candidates(ctx, "")
	if err != nil {
		return Board{}, err
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	cols := make(map[models.Stage][]models.Candidate, len(models.Stages))
	total := 0
	for _, cand := range all {
		if needle != "" &&
			!strings.Contains(strings.ToLower(cand.Name), needle) &&
			!strings.Contains(strings.ToLower(cand.Email), needle) {
			continue
		}
		cols[cand.Stage] = append(cols[cand.Stage], cand)
		total++
	}
	b := Board{Total: total, Columns: make([]Column, len(models.Stages))}
	for i, st := range models.Stages {
		list := cols[st]
		if list == nil {
			list = []models.Candidate{}
		}
		b.Columns[i] = Column{Stage: st, Candidates: list}
	}
	return b, nil
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("pipeline: "+format+": %w", append(args, apperr.ErrValidation)...)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("pipeline: "+format+": %w", append(args, apperr.ErrNotFound)...)
}
