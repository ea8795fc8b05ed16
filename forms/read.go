package forms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/model"
)

// ReadForm loads one form through q, which may be an open transaction.
func ReadForm(ctx context.Context, q Querier, formID int64) (*model.Form, error) {
	var f model.Form
	err := q.QueryRowContext(ctx, `
		SELECT id, title, description, created_by, is_published, created_at, updated_at
		FROM forms
		WHERE id = ?`,
		formID,
	).Scan(&f.ID, &f.Title, &f.Description, &f.CreatedBy, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("forms.read", "form %d not found", formID)
	}
	if err != nil {
		return nil, database.Classify("forms.read", err)
	}
	return &f, nil
}

// ReadQuestions loads the questions of a form sorted by order number.
func ReadQuestions(ctx context.Context, q Querier, formID int64) ([]model.Question, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, form_id, text, type, required, options, correct_answer, is_knockout, order_num, created_at
		FROM questions
		WHERE form_id = ?
		ORDER BY order_num ASC`,
		formID,
	)
	if err != nil {
		return nil, database.Classify("forms.read_questions", err)
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var qu model.Question
		var qtype string
		var options, correct sql.NullString
		err = rows.Scan(
			&qu.ID, &qu.FormID, &qu.Text, &qtype, &qu.Required, &options, &correct,
			&qu.IsKnockout, &qu.OrderNum, &qu.CreatedAt,
		)
		if err != nil {
			return nil, database.Classify("forms.read_questions.scan", err)
		}
		qu.Type = model.QuestionType(qtype)
		if err := decodeOptions(options, correct, &qu); err != nil {
			return nil, apperr.Storage("forms.read_questions.parse_options", err)
		}
		questions = append(questions, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("forms.read_questions", err)
	}
	return questions, nil
}

func decodeOptions(options, correct sql.NullString, q *model.Question) error {
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
			return err
		}
	}
	if correct.Valid {
		value := correct.String
		q.CorrectAnswer = &value
	}
	return nil
}
