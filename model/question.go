package model

type QuestionType string

const (
	TypeText           QuestionType = "text"
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeCheckbox       QuestionType = "checkbox"
	TypeKnockout       QuestionType = "knockout"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeMultipleChoice, TypeCheckbox, TypeKnockout:
		return true
	}
	return false
}

// IsChoice reports whether answers are picked from the question's options.
func (t QuestionType) IsChoice() bool {
	return t == TypeMultipleChoice || t == TypeCheckbox
}

func (q Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o == value {
			return true
		}
	}
	return false
}
