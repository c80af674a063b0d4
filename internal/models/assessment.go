package models

import "time"

// QuestionType is the closed set of assessment question kinds.
type QuestionType string

// Question types.
const (
	ShortText    QuestionType = "short-text"
	LongText     QuestionType = "long-text"
	SingleChoice QuestionType = "single-choice"
	MultiChoice  QuestionType = "multi-choice"
	Numeric      QuestionType = "numeric"
	FileUpload   QuestionType = "file-upload"
)

// QuestionTypes lists every question type.
var QuestionTypes = []QuestionType{ShortText, LongText, SingleChoice, MultiChoice, Numeric, FileUpload}

// IsChoice reports whether the type carries options.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultiChoice
}

// Option is one selectable answer of a choice question.
type Option struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Condition makes a question visible only once QuestionID has a non-blank answer.
type Condition struct {
	QuestionID string `json:"questionId"`
}

// Question is one entry of an assessment form.
type Question struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Label     string       `json:"label"`
	Required  bool         `json:"required"`
	Options   []Option     `json:"options,omitempty"`
	Min       *float64     `json:"min,omitempty"`
	Max       *float64     `json:"max,omitempty"`
	Condition *Condition   `json:"condition,omitempty"`
}

// Assessment is the question config of a job. There is at most one per job.
type Assessment struct {
	JobID     int64      `json:"jobId"`
	Config    []Question `json:"config"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Submission is one candidate's recorded answers. It is never modified.
type Submission struct {
	ID          int64             `json:"id"`
	JobID       int64             `json:"jobId"`
	CandidateID int64             `json:"candidateId"`
	Responses   map[string]string `json:"responses"`
	Timestamp   time.Time         `json:"timestamp"`
}

// SubmissionDraft is a submission before the store assigns id and timestamp.
type SubmissionDraft struct {
	JobID       int64             `json:"jobId"`
	CandidateID int64             `json:"candidateId"`
	Responses   map[string]string `json:"responses"`
}

// CloneQuestions deep-copies a question list.
func CloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.Options = append([]Option(nil), q.Options...)
		if q.Min != nil {
			v := *q.Min
			q.Min = &v
		}
		if q.Max != nil {
			v := *q.Max
			q.Max = &v
		}
		if q.Condition != nil {
			c := *q.Condition
			q.Condition = &c
		}
		out[i] = q
	}
	return out
}
