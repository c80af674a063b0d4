package models

import (
	"fmt"
	"time"
)

// Stage is a candidate's position in the hiring funnel.
type Stage string

// Funnel stages, in board column order.
const (
	StageApplied  Stage = "applied"
	StageScreen   Stage = "screen"
	StageTech     Stage = "tech"
	StageOffer    Stage = "offer"
	StageHired    Stage = "hired"
	StageRejected Stage = "rejected"
)

// Stages lists every stage in kanban column order.
var Stages = []Stage{StageApplied, StageScreen, StageTech, StageOffer, StageHired, StageRejected}

// ParseStage converts a raw string to a Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Candidate is an applicant for a job. JobID does not own the job.
type Candidate struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Stage Stage  `json:"stage"`
	JobID int64  `json:"jobId"`
}

// TimelineEvent is one append-only entry in a candidate's history.
type TimelineEvent struct {
	ID          int64     `json:"id"`
	CandidateID int64     `json:"candidateId"`
	Event       string    `json:"event"`
	Content     string    `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NoteEvent is the event text recorded for a free-text note.
const NoteEvent = "Note added"

// StageEvent returns the event text recorded when a candidate changes stage.
func StageEvent(stage Stage) string {
	return fmt.Sprintf("Moved to %q stage", string(stage))
}
