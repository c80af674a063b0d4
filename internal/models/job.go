// Package models defines the domain types for TalentFlow.
package models

import (
	"fmt"
	"strings"
)

// JobStatus is the lifecycle state of a job posting.
type JobStatus string

// Job statuses.
const (
	JobActive   JobStatus = "active"
	JobArchived JobStatus = "archived"
)

// ParseJobStatus converts a raw string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case JobActive, JobArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Toggle returns the opposite status.
func (s JobStatus) Toggle() JobStatus {
	if s == JobArchived {
		return JobActive
	}
	return JobArchived
}

// Job is a job posting. Order is its 1-based position on the jobs board.
type Job struct {
	ID     int64     `json:"id"`
	Title  string    `json:"title"`
	Slug   string    `json:"slug"`
	Status JobStatus `json:"status"`
	Tags   []string  `json:"tags"`
	Order  int       `json:"order"`
}

// JobDraft carries the fields accepted when creating a job.
type JobDraft struct {
	Title string   `json:"title"`
	Slug  string   `json:"slug,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// JobPatch is a partial update; nil fields are left untouched.
type JobPatch struct {
	Title  *string    `json:"title,omitempty"`
	Slug   *string    `json:"slug,omitempty"`
	Status *JobStatus `json:"status,omitempty"`
	Tags   *[]string  `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p JobPatch) IsEmpty() bool {
	return p.Title == nil && p.Slug == nil && p.Status == nil && p.Tags == nil
}

// ApplyTo returns a copy of j with the patch applied.
func (p JobPatch) ApplyTo(j Job) Job {
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.Slug != nil {
		j.Slug = *p.Slug
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Tags != nil {
		j.Tags = NormalizeTags(*p.Tags)
	} else {
		j.Tags = append([]string(nil), j.Tags...)
	}
	return j
}

// DefaultPageSize is used when a query does not specify one.
const DefaultPageSize = 10

// JobQuery filters and pages the jobs board.
type JobQuery struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Search   string `json:"search,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Normalize fills defaults: page 1, DefaultPageSize, and "all" as no status filter.
func (q JobQuery) Normalize() JobQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	if q.Status == "all" {
		q.Status = ""
	}
	return q
}

// Offset returns the number of jobs preceding the page.
func (q JobQuery) Offset() int {
	q = q.Normalize()
	return (q.Page - 1) * q.PageSize
}

// JobPage is one page of the jobs board.
type JobPage struct {
	Jobs       []Job `json:"jobs"`
	TotalCount int   `json:"totalCount"`
}

// Clone returns a deep copy of the page.
func (p JobPage) Clone() JobPage {
	out := JobPage{TotalCount: p.TotalCount, Jobs: make([]Job, len(p.Jobs))}
	for i, j := range p.Jobs {
		j.Tags = append([]string(nil), j.Tags...)
		out.Jobs[i] = j
	}
	return out
}

// NormalizeTags trims tags, drops empty ones and removes duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags parses a comma separated tag list as typed in the job form.
func SplitTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}
