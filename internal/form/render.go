// Package form is the dynamic assessment form model: rendering descriptors,
// conditional visibility, submit-time validation and the builder's config
// checks.
package form

import (
	"strings"

	"github.com/starford/talentflow/internal/models"
)

// Widget is the input control a question renders as.
type Widget string

const (
	WidgetText     Widget = "text"
	WidgetTextarea Widget = "textarea"
	WidgetRadio    Widget = "radio"
	WidgetCheckbox Widget = "checkbox"
	WidgetNumber   Widget = "number"
	WidgetFile     Widget = "file"
)

// Choice is one option of a radio or checkbox field.
type Choice struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Field describes how to present one question with its current response.
type Field struct {
	QuestionID string              `json:"questionId"`
	Type       models.QuestionType `json:"type"`
	Label      string              `json:"label"`
	Required   bool                `json:"required"`
	Widget     Widget              `json:"widget"`
	Value      string              `json:"value,omitempty"`
	Choices    []Choice            `json:"choices,omitempty"`
	Min        *float64            `json:"min,omitempty"`
	Max        *float64            `json:"max,omitempty"`
	Rows       int                 `json:"rows,omitempty"`
}

type renderer func(q models.Question, response string) Field

var renderers = map[models.QuestionType]renderer{
	models.ShortText: func(q models.Question, response string) Field {
		return base(q, WidgetText, response)
	},
	models.LongText: func(q models.Question, response string) Field {
		f := base(q, WidgetTextarea, response)
		f.Rows = 4
		return f
	},
	models.SingleChoice: func(q models.Question, response string) Field {
		f := base(q, WidgetRadio, response)
		f.Choices = choices(q, func(v string) bool { return v == response })
		return f
	},
	models.MultiChoice: func(q models.Question, response string) Field {
		picked := make(map[string]bool)
		for _, v := range SplitChoices(response) {
			picked[v] = true
		}
		f := base(q, WidgetCheckbox, response)
		f.Choices = choices(q, func(v string) bool { return picked[v] })
		return f
	},
	models.Numeric: func(q models.Question, response string) Field {
		f := base(q, WidgetNumber, response)
		f.Min, f.Max = q.Min, q.Max
		return f
	},
	models.FileUpload: func(q models.Question, response string) Field {
		return base(q, WidgetFile, response)
	},
}

func base(q models.Question, w Widget, response string) Field {
	return Field{QuestionID: q.ID, Label: q.Label, Required: q.Required, Widget: w, Value: response, Type: q.Type}
}

func choices(q models.Question, selected func(string) bool) []Choice {
	out := make([]Choice, len(q.Options))
	for i, o := range q.Options {
		out[i] = Choice{ID: o.ID, Value: o.Value, Selected: selected(o.Value)}
	}
	return out
}

// Render returns the field descriptor of q. Unknown types render as plain text.
func Render(q models.Question, response string) Field {
	if r, ok := renderers[q.Type]; ok {
		return r(q, response)
	}
	return base(q, WidgetText, response)
}

// RenderAll renders the questions visible under responses, in list order.
func RenderAll(questions []models.Question, responses map[string]string) []Field {
	visible := Visible(questions, responses)
	out := make([]Field, len(visible))
	for i, q := range visible {
		out[i] = Render(q, responses[q.ID])
	}
	return out
}

// Visible returns the questions shown for responses, in list order. A
// question with a condition is shown only while the referenced question has
// a non-blank response. A question whose condition chain loops back to
// itself is never shown.
func Visible(questions []models.Question, responses map[string]string) []models.Question {
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if IsVisible(q, responses) && !cyclic(q.ID, byID) {
			out = append(out, q)
		}
	}
	return out
}

// IsVisible applies the condition rule to a single question.
func IsVisible(q models.Question, responses map[string]string) bool {
	if q.Condition == nil || q.Condition.QuestionID == "" {
		return true
	}
	return !blank(responses[q.Condition.QuestionID])
}

// cyclic reports whether following condition references from id returns to id.
func cyclic(id string, byID map[string]models.Question) bool {
	seen := map[string]bool{}
	cur := id
	for {
		q, ok := byID[cur]
		if !ok || q.Condition == nil || q.Condition.QuestionID == "" {
			return false
		}
		next := q.Condition.QuestionID
		if next == id {
			return true
		}
		if seen[next] {
			// Loops elsewhere without reaching id.
			return false
		}
		seen[next] = true
		cur = next
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// JoinChoices encodes the selected values of a multi-choice question.
func JoinChoices(values []string) string {
	return strings.Join(values, "\n")
}

// SplitChoices decodes a multi-choice response, dropping blank entries.
func SplitChoices(response string) []string {
	var out []string
	for _, v := range strings.Split(response, "\n") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
