package form

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
)

// Rejection reasons.
const (
	ReasonRequired = "missing required field"
	ReasonRange    = "out of range"
	ReasonNaN      = "not a number"
	ReasonChoice   = "invalid choice"
)

// ValidationError rejects a submission because of one question.
type ValidationError struct {
	QuestionID string
	Label      string
	Reason     string
	// Min and Max are the effective bounds of an out of range numeric answer.
	Min, Max float64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonRequired:
		return fmt.Sprintf("%s: please answer the required question %q", e.Reason, e.Label)
	case ReasonRange:
		return fmt.Sprintf("%s: the value for %q must be between %s and %s", e.Reason, e.Label, bound(e.Min), bound(e.Max))
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Label)
}

func (e *ValidationError) Unwrap() error {
	return apperr.ErrValidation
}

func bound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// validator checks a non-blank response of one question type.
type validator func(q models.Question, response string) *ValidationError

func acceptAny(models.Question, string) *ValidationError { return nil }

var validators = map[models.QuestionType]validator{
	models.ShortText:  acceptAny,
	models.LongText:   acceptAny,
	models.FileUpload: acceptAny,
	models.SingleChoice: func(q models.Question, response string) *ValidationError {
		if !hasOption(q, strings.TrimSpace(response)) {
			return reject(q, ReasonChoice)
		}
		return nil
	},
	models.MultiChoice: func(q models.Question, response string) *ValidationError {
		for _, v := range SplitChoices(response) {
			if !hasOption(q, v) {
				return reject(q, ReasonChoice)
			}
		}
		return nil
	},
	models.Numeric: func(q models.Question, response string) *ValidationError {
		n, err := strconv.ParseFloat(strings.TrimSpace(response), 64)
		if err != nil || math.IsNaN(n) {
			return reject(q, ReasonNaN)
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		if q.Min != nil {
			lo = *q.Min
		}
		if q.Max != nil {
			hi = *q.Max
		}
		if n < lo || n > hi {
			e := reject(q, ReasonRange)
			e.Min, e.Max = lo, hi
			return e
		}
		return nil
	},
}

func reject(q models.Question, reason string) *ValidationError {
	return &ValidationError{QuestionID: q.ID, Label: q.Label, Reason: reason}
}

// hasOption reports whether v is one of q's option values. A choice question
// without options accepts anything.
func hasOption(q models.Question, v string) bool {
	if len(q.Options) == 0 {
		return true
	}
	return slices.ContainsFunc(q.Options, func(o models.Option) bool { return o.Value == v })
}

// Validate checks responses against the visible questions in list order and
// returns the first failure as a *ValidationError.
func Validate(questions []models.Question, responses map[string]string) error {
	for _, q := range Visible(questions, responses) {
		if e := check(q, responses[q.ID]); e != nil {
			return e
		}
	}
	return nil
}

func check(q models.Question, response string) *ValidationError {
	if blank(response) {
		if q.Required {
			return reject(q, ReasonRequired)
		}
		return nil
	}
	if v, ok := validators[q.Type]; ok {
		return v(q, response)
	}
	return nil
}

// Collect returns the non-blank responses to visible questions. Answers to
// hidden questions are dropped.
func Collect(questions []models.Question, responses map[string]string) map[string]string {
	out := make(map[string]string)
	for _, q := range Visible(questions, responses) {
		if r := responses[q.ID]; !blank(r) {
			out[q.ID] = r
		}
	}
	return out
}
