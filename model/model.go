package model

import "time"

type Form struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	CreatorName *string   `json:"creator_name,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormWithQuestions is a form and its questions sorted by OrderNum.
type FormWithQuestions struct {
	Form      Form       `json:"form"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID            int64        `json:"id"`
	FormID        int64        `json:"form_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Required      bool         `json:"required"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer *string      `json:"correct_answer,omitempty"`
	IsKnockout    bool         `json:"is_knockout"`
	OrderNum      int          `json:"order_num"`
	CreatedAt     time.Time    `json:"created_at"`
}

// QuestionSpec is the caller input for adding a question to a form.
// Required defaults to true when omitted.
type QuestionSpec struct {
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Required      *bool        `json:"required"`
	Options       []string     `json:"options"`
	CorrectAnswer *string      `json:"correct_answer"`
	IsKnockout    bool         `json:"is_knockout"`
}

type Verdict struct {
	Rejected bool
	Reason   string
}

const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
)

type Application struct {
	ID              int64     `json:"id"`
	FormID          int64     `json:"form_id"`
	FormTitle       *string   `json:"form_title"`
	UserID          int64     `json:"user_id"`
	UserName        string    `json:"full_name,omitempty"`
	UserEmail       string    `json:"email,omitempty"`
	Answers         Answers   `json:"answers"`
	IsRejected      bool      `json:"is_rejected"`
	RejectionReason *string   `json:"rejection_reason"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
