package form

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/models"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func configSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// ParseConfig decodes a raw question list after checking it against the
// config JSON schema, then applies ValidateConfig.
func ParseConfig(raw []byte) ([]models.Question, error) {
	s, err := configSchema()
	if err != nil {
		return nil, fmt.Errorf("form: load schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("form: %v: %w", err, apperr.ErrValidation)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("form: config does not match schema: %s: %w", strings.Join(errs, "; "), apperr.ErrValidation)
	}
	var qs []models.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, fmt.Errorf("form: %v: %w", err, apperr.ErrValidation)
	}
	if err := ValidateConfig(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func questionTypes() []any {
	out := make([]any, len(models.QuestionTypes))
	for i, t := range models.QuestionTypes {
		out[i] = t
	}
	return out
}

func validateQuestion(q *models.Question) error {
	return validation.ValidateStruct(q,
		validation.Field(&q.ID, validation.Required),
		validation.Field(&q.Label, validation.Required),
		validation.Field(&q.Type, validation.Required, validation.In(questionTypes()...)),
		validation.Field(&q.Options,
			validation.When(q.Type.IsChoice(), validation.Required),
			validation.Each(validation.By(func(v any) error {
				o, _ := v.(models.Option)
				return validation.ValidateStruct(&o,
					validation.Field(&o.ID, validation.Required),
					validation.Field(&o.Value, validation.Required),
				)
			})),
		),
		validation.Field(&q.Min, validation.When(q.Min != nil && q.Max != nil && *q.Min > *q.Max,
			validation.By(func(any) error { return fmt.Errorf("must not exceed max") }))),
	)
}

// ValidateConfig checks a question list before it is saved: required fields,
// known types, options for choice types, min not above max, unique question
// and option ids, conditions referencing another question, and no condition
// cycles.
func ValidateConfig(questions []models.Question) error {
	errs := validation.Errors{}
	ids := make(map[string]int, len(questions))
	byID := make(map[string]models.Question, len(questions))

	for i := range questions {
		q := questions[i]
		field := fmt.Sprintf("questions[%d]", i)
		if err := validateQuestion(&q); err != nil {
			errs[field] = err
			continue
		}
		if j, dup := ids[q.ID]; dup {
			errs[field] = fmt.Errorf("duplicate id %q (also questions[%d])", q.ID, j)
			continue
		}
		ids[q.ID] = i
		byID[q.ID] = q

		optIDs := map[string]bool{}
		for _, o := range q.Options {
			if optIDs[o.ID] {
				errs[field] = fmt.Errorf("duplicate option id %q", o.ID)
				break
			}
			optIDs[o.ID] = true
		}
	}

	for i, q := range questions {
		if q.Condition == nil || q.Condition.QuestionID == "" {
			continue
		}
		field := fmt.Sprintf("questions[%d].condition", i)
		ref := q.Condition.QuestionID
		switch {
		case ref == q.ID:
			errs[field] = fmt.Errorf("question %q cannot depend on itself", q.ID)
		case !hasID(ids, ref):
			errs[field] = fmt.Errorf("references unknown question %q", ref)
		case cyclic(q.ID, byID):
			errs[field] = fmt.Errorf("visibility condition of %q forms a cycle", q.ID)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("form: invalid config: %w: %w", errs, apperr.ErrValidation)
	}
	return nil
}

func hasID(ids map[string]int, id string) bool {
	_, ok := ids[id]
	return ok
}

// NewQuestion returns a question of type t with a fresh id and the given
// option values.
func NewQuestion(t models.QuestionType, label string, options ...string) models.Question {
	q := models.Question{ID: uuid.NewString(), Type: t, Label: label}
	for _, v := range options {
		q.Options = append(q.Options, NewOption(v))
	}
	return q
}

// NewOption returns an option with a fresh id.
func NewOption(value string) models.Option {
	return models.Option{ID: uuid.NewString(), Value: value}
}
