package pipeline

import (
	"context"
	"errors"

	"github.com/starford/talentflow/internal/querycache"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/sse"
)

// Follow invalidates cached queries as change events arrive from src, so
// writes made by other clients show up without polling. It returns when ctx
// is done or the stream ends.
func (c *Client) Follow(ctx context.Context, src remote.EventSource) error {
	err := src.Events(ctx, func(ev sse.Event) error {
		c.Reconcile(ev)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Reconcile invalidates the queries a change event makes stale.
func (c *Client) Reconcile(ev sse.Event) {
	ch, err := ev.Change()
	if err != nil {
		c.log.Warn("pipeline: ignoring event", "type", ev.Type, "error", err)
		return
	}
	for _, k := range staleKeys(ev.Type, ch) {
		c.cache.Invalidate(k)
	}
}

func staleKeys(kind string, ch sse.Change) []querycache.Key {
	switch kind {
	case sse.JobCreated, sse.JobUpdated, sse.JobReordered:
		return []querycache.Key{JobsPrefix}
	case sse.CandidateUpdated:
		return []querycache.Key{CandidateListsKey, CandidateKey(ch.ID), TimelineKey(ch.ID)}
	case sse.NoteAdded:
		return []querycache.Key{TimelineKey(ch.ID)}
	case sse.AssessmentSaved:
		return []querycache.Key{AssessmentKey(ch.JobID)}
	case sse.SubmissionCreated:
		return []querycache.Key{SubmissionsKey(ch.JobID)}
	case sse.FixturesImported:
		return []querycache.Key{{}}
	}
	return nil
}
