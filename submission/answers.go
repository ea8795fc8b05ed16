package submission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/model"
)

// NormalizeAnswers checks answers against the form's questions and returns
// them with choice answers narrowed to their question's kind.
//
// Unknown question ids, values of the wrong shape and unanswered required
// questions are validation errors. An unanswered knockout question is not:
// it is left for the evaluator to reject.
func NormalizeAnswers(questions []model.Question, answers model.Answers) (model.Answers, error) {
	byID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ids := make([]int64, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result *multierror.Error
	out := make(model.Answers, len(answers))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("question %d is not part of this form", id))
			continue
		}
		a, err := normalizeAnswer(q, answers[id])
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("question %d: %w", id, err))
			continue
		}
		out[id] = a
	}

	for _, q := range questions {
		if !q.Required || q.IsKnockout {
			continue
		}
		if a, ok := answers[q.ID]; !ok || isBlank(a) {
			result = multierror.Append(result, fmt.Errorf("question %d is required", q.ID))
		}
	}

	if err := apperr.Problems("submission.answers", result); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeAnswer(q model.Question, a model.Answer) (model.Answer, error) {
	switch q.Type {
	case model.TypeText, model.TypeKnockout:
		if a.Kind == model.AnswerChoices {
			return a, fmt.Errorf("expects a text answer")
		}
		return model.Text(a.Text), nil

	case model.TypeMultipleChoice:
		if a.Kind == model.AnswerChoices {
			return a, fmt.Errorf("expects a single option")
		}
		if !q.HasOption(a.Text) {
			return a, fmt.Errorf("%q is not one of the options", a.Text)
		}
		return model.Choice(a.Text), nil

	case model.TypeCheckbox:
		if a.Kind != model.AnswerChoices {
			return a, fmt.Errorf("expects a list of options")
		}
		seen := make(map[string]bool, len(a.Choices))
		for _, c := range a.Choices {
			if !q.HasOption(c) {
				return a, fmt.Errorf("%q is not one of the options", c)
			}
			if seen[c] {
				return a, fmt.Errorf("%q is selected twice", c)
			}
			seen[c] = true
		}
		return model.Choices(a.Choices...), nil
	}
	return a, fmt.Errorf("unsupported question type %q", q.Type)
}

func isBlank(a model.Answer) bool {
	if a.Kind == model.AnswerChoices {
		return len(a.Choices) == 0
	}
	return strings.TrimSpace(a.Text) == ""
}
