package form

import (
	"context"
	"maps"
	"sync"

	"github.com/starford/talentflow/internal/models"
)

// QuestionState is the per-question progress of a form session.
type QuestionState int

const (
	Unanswered QuestionState = iota
	Answered
	ValidatedOK
	ValidatedFailed
)

func (s QuestionState) String() string {
	switch s {
	case Answered:
		return "answered"
	case ValidatedOK:
		return "validated-ok"
	case ValidatedFailed:
		return "validated-failed"
	}
	return "unanswered"
}

// SendFunc delivers the collected responses of a valid submission.
type SendFunc func(ctx context.Context, responses map[string]string) error

// Session holds the responses of one candidate filling one assessment.
type Session struct {
	mu        sync.Mutex
	questions []models.Question
	responses map[string]string
	states    map[string]QuestionState
}

// NewSession starts an empty session over questions.
func NewSession(questions []models.Question) *Session {
	return &Session{
		questions: models.CloneQuestions(questions),
		responses: make(map[string]string),
		states:    make(map[string]QuestionState),
	}
}

// Set records a response. A blank value returns the question to unanswered.
func (s *Session) Set(questionID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blank(value) {
		delete(s.responses, questionID)
		s.states[questionID] = Unanswered
		return
	}
	s.responses[questionID] = value
	s.states[questionID] = Answered
}

// Responses returns a copy of the current responses.
func (s *Session) Responses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.responses)
}

// State returns the progress of one question.
func (s *Session) State(questionID string) QuestionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[questionID]
}

// Fields renders the questions visible under the current responses.
func (s *Session) Fields() []Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RenderAll(s.questions, s.responses)
}

// Submit validates the visible questions in order. The first failure is
// returned without calling send. Otherwise send receives the collected
// responses; on success the session is cleared, on failure responses are kept.
func (s *Session) Submit(ctx context.Context, send SendFunc) error {
	s.mu.Lock()
	for _, q := range Visible(s.questions, s.responses) {
		if e := check(q, s.responses[q.ID]); e != nil {
			s.states[q.ID] = ValidatedFailed
			s.mu.Unlock()
			return e
		}
		s.states[q.ID] = ValidatedOK
	}
	collected := Collect(s.questions, s.responses)
	s.mu.Unlock()

	if err := send(ctx, collected); err != nil {
		return err
	}

	s.mu.Lock()
	s.responses = make(map[string]string)
	s.states = make(map[string]QuestionState)
	s.mu.Unlock()
	return nil
}
