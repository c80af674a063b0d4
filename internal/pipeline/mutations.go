package pipeline

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/starford/talentflow/internal/form"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/mutation"
	"github.com/starford/talentflow/internal/querycache"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/reorder"
)

// CreateJob creates a job. The board is refetched once the server accepts it.
func (c *Client) CreateJob(ctx context.Context, d models.JobDraft) (models.Job, error) {
	if strings.TrimSpace(d.Title) == "" {
		return models.Job{}, validationf("job title is required")
	}
	var created models.Job
	err := c.coord.Run(ctx, mutation.Mutation{
		Op: remote.OpCreateJob,
		Send: func(ctx context.Context) error {
			var err error
			created, err = c.remote.CreateJob(ctx, d)
			return err
		},
		Invalidate: []querycache.Key{JobsPrefix},
	})
	return created, err
}

// UpdateJob patches a job in its detail entry and every cached board page.
func (c *Client) UpdateJob(ctx context.Context, id int64, patch models.JobPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return validationf("job title is required")
	}
	pages := c.cache.Keys(JobListPrefix)
	keys := append([]querycache.Key{JobKey(id)}, pages...)
	return c.coord.Run(ctx, mutation.Mutation{
		Op:   remote.OpUpdateJob,
		Keys: keys,
		Apply: func(tx *mutation.Tx) error {
			if err := mutation.Update(tx, JobKey(id), patch.ApplyTo); err != nil {
				return err
			}
			for _, k := range pages {
				err := mutation.Update(tx, k, func(p models.JobPage) models.JobPage {
					out := p.Clone()
					for i := range out.Jobs {
						if out.Jobs[i].ID == id {
							out.Jobs[i] = patch.ApplyTo(out.Jobs[i])
						}
					}
					return out
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
		Send:       func(ctx context.Context) error { return c.remote.UpdateJob(ctx, id, patch) },
		Invalidate: []querycache.Key{JobsPrefix},
	})
}

// ToggleArchive flips a job between active and archived and returns the new status.
func (c *Client) ToggleArchive(ctx context.Context, id int64) (models.JobStatus, error) {
	j, err := c.Job(ctx, id)
	if err != nil {
		return "", err
	}
	next := j.Status.Toggle()
	if err := c.UpdateJob(ctx, id, models.JobPatch{Status: &next}); err != nil {
		return j.Status, err
	}
	return next, nil
}

// ReorderJob drops activeID onto overID within the page selected by q. The
// dragged job takes the order of the job it was dropped on.
func (c *Client) ReorderJob(ctx context.Context, q models.JobQuery, activeID, overID int64) error {
	if activeID == overID {
		return nil
	}
	page, err := c.Jobs(ctx, q)
	if err != nil {
		return err
	}
	ai := slices.IndexFunc(page.Jobs, func(j models.Job) bool { return j.ID == activeID })
	oi := slices.IndexFunc(page.Jobs, func(j models.Job) bool { return j.ID == overID })
	if ai < 0 || oi < 0 {
		return notFoundf("job %d or %d is not on the page", activeID, overID)
	}
	return c.move(ctx, activeID, page.Jobs[ai].Order, page.Jobs[oi].Order)
}

// MoveJob moves a job to the 1-based position toOrder. Positions past the end
// of the board move it last.
func (c *Client) MoveJob(ctx context.Context, id int64, toOrder int) error {
	from, ok := c.cachedOrder(id)
	if !ok {
		j, err := c.Job(ctx, id)
		if err != nil {
			return err
		}
		from = j.Order
	}
	return c.move(ctx, id, from, toOrder)
}

// cachedOrder reports the position of id on any cached board page.
func (c *Client) cachedOrder(id int64) (int, bool) {
	for _, k := range c.cache.Keys(JobListPrefix) {
		snap := c.cache.Snapshot(k)
		p, ok := snap.Data.(models.JobPage)
		if !snap.OK || !ok {
			continue
		}
		if i := slices.IndexFunc(p.Jobs, func(j models.Job) bool { return j.ID == id }); i >= 0 {
			return p.Jobs[i].Order, true
		}
	}
	return 0, false
}

func (c *Client) move(ctx context.Context, id int64, from, to int) error {
	n, ok := c.boardSize()
	if !ok {
		page, err := c.Jobs(ctx, models.JobQuery{PageSize: 1})
		if err != nil {
			return err
		}
		n = page.TotalCount
	}
	to = max(min(to, n), 1)
	if from == to {
		return nil
	}
	pages := c.cache.Keys(JobListPrefix)
	details := c.cache.Keys(JobDetailPrefix)
	keys := append(append([]querycache.Key{JobKey(id)}, details...), pages...)
	return c.coord.Run(ctx, mutation.Mutation{
		Op:   remote.OpReorderJob,
		Keys: keys,
		Apply: func(tx *mutation.Tx) error {
			err := mutation.Update(tx, JobKey(id), func(j models.Job) models.Job {
				j.Order = to
				return j
			})
			if err != nil {
				return err
			}
			for _, k := range details {
				if other, _ := k[2].(int64); other == id {
					continue
				}
				if err := mutation.Update(tx, k, func(j models.Job) models.Job {
					j.Order = reorder.Shift(j.Order, from, to)
					return j
				}); err != nil {
					return err
				}
			}
			for _, k := range pages {
				if err := mutation.Update(tx, k, func(p models.JobPage) models.JobPage {
					return shiftPage(p, from, to)
				}); err != nil {
					return err
				}
			}
			return nil
		},
		Send:        func(ctx context.Context) error { return c.remote.ReorderJob(ctx, id, to) },
		Invalidate:  []querycache.Key{JobsPrefix},
		SettleDelay: c.settle,
	})
}

// boardSize reports the job count from any cached unfiltered page.
func (c *Client) boardSize() (int, bool) {
	for _, k := range c.cache.Keys(JobListPrefix) {
		q, ok := listQuery(k)
		if !ok || q.Search != "" || q.Status != "" {
			continue
		}
		if snap := c.cache.Snapshot(k); snap.OK {
			if p, ok := snap.Data.(models.JobPage); ok {
				return p.TotalCount, true
			}
		}
	}
	return 0, false
}

func shiftPage(p models.JobPage, from, to int) models.JobPage {
	out := p.Clone()
	for i := range out.Jobs {
		out.Jobs[i].Order = reorder.Shift(out.Jobs[i].Order, from, to)
	}
	slices.SortStableFunc(out.Jobs, func(a, b models.Job) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

// MoveCandidate moves a candidate to stage. The card changes column and a
// provisional stage event joins the timeline before the server confirms.
func (c *Client) MoveCandidate(ctx context.Context, id int64, stage string) error {
	st, err := models.ParseStage(stage)
	if err != nil {
		return validationf("%v", err)
	}
	cand, err := c.Candidate(ctx, id)
	if err != nil {
		return err
	}
	if cand.Stage == st {
		return nil
	}
	lists := c.cache.Keys(CandidateListsKey)
	keys := append([]querycache.Key{CandidateKey(id), TimelineKey(id)}, lists...)
	moved := cand
	moved.Stage = st
	event := models.TimelineEvent{
		ID:          c.provisionalID(),
		CandidateID: id,
		Event:       models.StageEvent(st),
		Timestamp:   c.now(),
	}
	return c.coord.Run(ctx, mutation.Mutation{
		Op:   remote.OpCandidateStage,
		Keys: keys,
		Apply: func(tx *mutation.Tx) error {
			if err := mutation.Update(tx, CandidateKey(id), func(models.Candidate) models.Candidate {
				return moved
			}); err != nil {
				return err
			}
			if err := mutation.Update(tx, TimelineKey(id), func(ev []models.TimelineEvent) []models.TimelineEvent {
				return append(slices.Clone(ev), event)
			}); err != nil {
				return err
			}
			for _, k := range lists {
				ks, _ := k[2].(string)
				if err := mutation.Update(tx, k, func(list []models.Candidate) []models.Candidate {
					return moveInList(list, moved, models.Stage(ks))
				}); err != nil {
					return err
				}
			}
			return nil
		},
		Send:        func(ctx context.Context) error { return c.remote.UpdateCandidateStage(ctx, id, st) },
		Invalidate:  []querycache.Key{CandidatesPrefix},
		SettleDelay: c.settle,
	})
}

// moveInList patches the cached list of stage; stage "" holds every candidate.
func moveInList(list []models.Candidate, moved models.Candidate, stage models.Stage) []models.Candidate {
	out := slices.DeleteFunc(slices.Clone(list), func(x models.Candidate) bool { return x.ID == moved.ID })
	if stage != "" && stage != moved.Stage {
		return out
	}
	i, _ := slices.BinarySearchFunc(out, moved.ID, func(x models.Candidate, id int64) int { return cmp.Compare(x.ID, id) })
	return slices.Insert(out, i, moved)
}

// AddNote appends a note to a candidate's timeline.
func (c *Client) AddNote(ctx context.Context, id int64, content string) (models.TimelineEvent, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.TimelineEvent{}, validationf("note content is required")
	}
	provisional := models.TimelineEvent{
		ID:          c.provisionalID(),
		CandidateID: id,
		Event:       models.NoteEvent,
		Content:     content,
		Timestamp:   c.now(),
	}
	var created models.TimelineEvent
	err := c.coord.Run(ctx, mutation.Mutation{
		Op:   remote.OpAddNote,
		Keys: []querycache.Key{TimelineKey(id)},
		Apply: func(tx *mutation.Tx) error {
			return mutation.Update(tx, TimelineKey(id), func(ev []models.TimelineEvent) []models.TimelineEvent {
				return append(slices.Clone(ev), provisional)
			})
		},
		Send: func(ctx context.Context) error {
			var err error
			created, err = c.remote.AddNote(ctx, id, content)
			return err
		},
		Invalidate: []querycache.Key{TimelineKey(id)},
	})
	return created, err
}

// SaveAssessment replaces a job's question config after checking it is well formed.
func (c *Client) SaveAssessment(ctx context.Context, jobID int64, config []models.Question) (models.Assessment, error) {
	if err := form.ValidateConfig(config); err != nil {
		return models.Assessment{}, err
	}
	config = models.CloneQuestions(config)
	if config == nil {
		config = []models.Question{}
	}
	var saved models.Assessment
	err := c.coord.Run(ctx, mutation.Mutation{
		Op:   remote.OpPutAssessment,
		Keys: []querycache.Key{AssessmentKey(jobID)},
		Apply: func(tx *mutation.Tx) error {
			return tx.Set(AssessmentKey(jobID), models.Assessment{JobID: jobID, Config: config, UpdatedAt: c.now()})
		},
		Send: func(ctx context.Context) error {
			var err error
			saved, err = c.remote.PutAssessment(ctx, jobID, config)
			return err
		},
		Invalidate: []querycache.Key{AssessmentKey(jobID)},
	})
	return saved, err
}

// SubmitAssessment validates responses against the job's assessment and
// records them. Nothing is sent when validation fails.
func (c *Client) SubmitAssessment(ctx context.Context, jobID, candidateID int64, responses map[string]string) (models.Submission, error) {
	a, err := c.Assessment(ctx, jobID)
	if err != nil {
		return models.Submission{}, err
	}
	s := form.NewSession(a.Config)
	for _, k := range slices.Sorted(maps.Keys(responses)) {
		s.Set(k, responses[k])
	}
	var sub models.Submission
	err = s.Submit(ctx, func(ctx context.Context, collected map[string]string) error {
		provisional := models.Submission{
			ID:          c.provisionalID(),
			JobID:       jobID,
			CandidateID: candidateID,
			Responses:   collected,
			Timestamp:   c.now(),
		}
		return c.coord.Run(ctx, mutation.Mutation{
			Op:   remote.OpSubmit,
			Keys: []querycache.Key{SubmissionsKey(jobID)},
			Apply: func(tx *mutation.Tx) error {
				return mutation.Update(tx, SubmissionsKey(jobID), func(subs []models.Submission) []models.Submission {
					return append(slices.Clone(subs), provisional)
				})
			},
			Send: func(ctx context.Context) error {
				var err error
				sub, err = c.remote.SubmitAssessment(ctx, models.SubmissionDraft{
					JobID:       jobID,
					CandidateID: candidateID,
					Responses:   collected,
				})
				return err
			},
			Invalidate: []querycache.Key{SubmissionsKey(jobID)},
		})
	})
	return sub, err
}
