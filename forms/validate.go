package forms

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/model"
)

func problem(msg string) error {
	return &apperr.Error{Kind: apperr.KindValidation, Msg: msg}
}

// normalizeQuestionSpec checks spec and returns the question to store.
// All problems are reported together.
func normalizeQuestionSpec(spec model.QuestionSpec) (model.Question, error) {
	var result *multierror.Error

	q := model.Question{
		Text:          strings.TrimSpace(spec.Text),
		Type:          spec.Type,
		Required:      spec.Required == nil || *spec.Required,
		CorrectAnswer: spec.CorrectAnswer,
		IsKnockout:    spec.IsKnockout || spec.Type == model.TypeKnockout,
	}

	if q.Text == "" {
		result = multierror.Append(result, problem("text is required"))
	}

	switch {
	case !q.Type.Valid():
		result = multierror.Append(result, problem("type must be one of text, multiple-choice, checkbox, knockout"))
	case q.Type.IsChoice():
		if len(spec.Options) < 2 {
			result = multierror.Append(result, problem("choice questions need at least two options"))
		}
		seen := make(map[string]bool, len(spec.Options))
		for _, o := range spec.Options {
			if o == "" || seen[o] {
				result = multierror.Append(result, problem("options must be distinct and non-empty"))
				break
			}
			seen[o] = true
		}
		q.Options = spec.Options
	case len(spec.Options) > 0:
		result = multierror.Append(result, problem("options are only allowed on choice questions"))
	}

	if q.IsKnockout {
		switch {
		case q.CorrectAnswer == nil:
			result = multierror.Append(result, problem("knockout questions need a correct answer"))
		case q.Type.IsChoice() && !q.HasOption(*q.CorrectAnswer):
			result = multierror.Append(result, problem("correct answer must be one of the options"))
		}
	}

	if err := apperr.Problems("forms.add_question", result); err != nil {
		return q, err
	}
	return q, nil
}
