// Package eligibility decides whether an answer set passes a form's
// knockout questions.
package eligibility

import "github.com/mbolis/quick-apply/model"

// Evaluate scans questions in the given order and rejects on the first
// knockout question whose answer is missing or differs from the correct
// answer. It has no side effects and never fails.
func Evaluate(questions []model.Question, answers model.Answers) model.Verdict {
	for _, q := range questions {
		if !q.IsKnockout {
			continue
		}
		answer, ok := answers[q.ID]
		if ok && q.CorrectAnswer != nil && answer.Equals(*q.CorrectAnswer) {
			continue
		}
		return model.Verdict{
			Rejected: true,
			Reason:   RejectionReason(q),
		}
	}
	return model.Verdict{}
}

func RejectionReason(q model.Question) string {
	return `Failed knockout question: "` + q.Text + `"`
}
