// Package forms stores forms and their ordered questions.
package forms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/metrics"
	"github.com/mbolis/quick-apply/model"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	retries int
	metrics *metrics.Metrics
}

// NewStore returns a Store. retries bounds the attempts made by AddQuestion
// when it loses a write race.
func NewStore(db *sql.DB, retries int, m *metrics.Metrics) *Store {
	if retries < 1 {
		retries = 1
	}
	return &Store{db: db, retries: retries, metrics: m}
}

func (s *Store) CreateForm(ctx context.Context, title, description string, creatorID int64) (*model.Form, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("forms.create", "title is required")
	}
	if creatorID <= 0 {
		return nil, apperr.Validation("forms.create", "creator is required")
	}

	now := time.Now().UTC()
	form := model.Form{
		Title:       title,
		Description: description,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO forms (title, description, created_by, is_published, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		RETURNING id`,
		form.Title,
		form.Description,
		form.CreatedBy,
		form.CreatedAt,
		form.UpdatedAt,
	).Scan(&form.ID)
	if err != nil {
		return nil, database.Classify("forms.create", err)
	}
	return &form, nil
}

// AddQuestion appends a question at the end of the form. The order number
// is computed by the INSERT itself inside a write-locked transaction, and a
// unique (form_id, order_num) index turns any remaining race into a
// conflict that is retried.
func (s *Store) AddQuestion(ctx context.Context, formID int64, spec model.QuestionSpec) (*model.Question, error) {
	q, err := normalizeQuestionSpec(spec)
	if err != nil {
		return nil, err
	}
	q.FormID = formID

	for attempt := 1; ; attempt++ {
		err = s.insertQuestion(ctx, &q)
		if err == nil {
			s.metrics.ObserveQuestionAdded()
			return &q, nil
		}
		if !apperr.Is(err, apperr.KindConflict) || attempt >= s.retries || ctx.Err() != nil {
			return nil, err
		}
		s.metrics.ObserveConflictRetry("forms.add_question")
		log.Debugf("forms.add_question: conflict on form %d, attempt %d: %s", formID, attempt, err)
	}
}

func (s *Store) insertQuestion(ctx context.Context, q *model.Question) error {
	var options any
	if q.Options != nil {
		optionsJson, err := json.Marshal(q.Options)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "forms.add_question.options", err)
		}
		options = string(optionsJson)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return database.Classify("forms.add_question.begin_tx", err)
	}
	defer tx.Rollback()

	if _, err := ReadForm(ctx, tx, q.FormID); err != nil {
		return err
	}

	q.CreatedAt = time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO questions (form_id, text, type, required, options, correct_answer, is_knockout, order_num, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(order_num), 0) + 1, ?
		FROM questions
		WHERE form_id = ?
		RETURNING id, order_num`,
		q.FormID,
		q.Text,
		string(q.Type),
		q.Required,
		options,
		q.CorrectAnswer,
		q.IsKnockout,
		q.CreatedAt,
		q.FormID,
	).Scan(&q.ID, &q.OrderNum)
	if err != nil {
		return database.Classify("forms.add_question.insert", err)
	}

	if err := tx.Commit(); err != nil {
		return database.Classify("forms.add_question.commit", err)
	}
	return nil
}

// GetForm returns the form with its questions in ascending order, read in
// a single statement.
func (s *Store) GetForm(ctx context.Context, formID int64) (*model.FormWithQuestions, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			f.id, f.title, f.description, f.created_by, f.is_published, f.created_at, f.updated_at,
			q.id, q.text, q.type, q.required, q.options, q.correct_answer, q.is_knockout, q.order_num, q.created_at
		FROM forms f
		LEFT OUTER JOIN questions q ON (f.id = q.form_id)
		WHERE f.id = ?
		ORDER BY q.order_num ASC`,
		formID,
	)
	if err != nil {
		return nil, database.Classify("forms.get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, database.Classify("forms.get", err)
		}
		return nil, apperr.NotFound("forms.get", "form %d not found", formID)
	}

	result := model.FormWithQuestions{Questions: []model.Question{}}
	for {
		var (
			f         = &result.Form
			id        sql.NullInt64
			text      sql.NullString
			qtype     sql.NullString
			required  sql.NullBool
			options   sql.NullString
			correct   sql.NullString
			knockout  sql.NullBool
			orderNum  sql.NullInt64
			createdAt sql.NullTime
		)
		err = rows.Scan(
			&f.ID, &f.Title, &f.Description, &f.CreatedBy, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt,
			&id, &text, &qtype, &required, &options, &correct, &knockout, &orderNum, &createdAt,
		)
		if err != nil {
			return nil, database.Classify("forms.get.scan", err)
		}

		if id.Valid {
			q := model.Question{
				ID:         id.Int64,
				FormID:     f.ID,
				Text:       text.String,
				Type:       model.QuestionType(qtype.String),
				Required:   required.Bool,
				IsKnockout: knockout.Bool,
				OrderNum:   int(orderNum.Int64),
				CreatedAt:  createdAt.Time,
			}
			if err := decodeOptions(options, correct, &q); err != nil {
				return nil, apperr.Storage("forms.get.parse_options", err)
			}
			result.Questions = append(result.Questions, q)
		}

		if !rows.Next() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("forms.get", err)
	}

	return &result, nil
}

func (s *Store) PublishForm(ctx context.Context, formID int64) (*model.Form, error) {
	var f model.Form
	err := s.db.QueryRowContext(ctx, `
		UPDATE forms
		SET is_published = 1, updated_at = ?
		WHERE id = ?
		RETURNING id, title, description, created_by, is_published, created_at, updated_at`,
		time.Now().UTC(),
		formID,
	).Scan(&f.ID, &f.Title, &f.Description, &f.CreatedBy, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("forms.publish", "form %d not found", formID)
	}
	if err != nil {
		return nil, database.Classify("forms.publish", err)
	}
	return &f, nil
}

// DeleteForm removes the form and, by cascade, its questions. Applications
// that reference the form are kept.
func (s *Store) DeleteForm(ctx context.Context, formID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, formID)
	if err != nil {
		return database.Classify("forms.delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Classify("forms.delete.verify", err)
	}
	if n < 1 {
		return apperr.NotFound("forms.delete", "form %d not found", formID)
	}
	return nil
}

// ListForms returns all forms, newest first, with the creator's name.
func (s *Store) ListForms(ctx context.Context) ([]model.Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.title, f.description, f.created_by, f.is_published, f.created_at, f.updated_at, u.full_name
		FROM forms f
		LEFT OUTER JOIN users u ON (u.id = f.created_by)
		ORDER BY f.created_at DESC, f.id DESC`)
	if err != nil {
		return nil, database.Classify("forms.list", err)
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		var f model.Form
		var creator sql.NullString
		err = rows.Scan(&f.ID, &f.Title, &f.Description, &f.CreatedBy, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt, &creator)
		if err != nil {
			return nil, database.Classify("forms.list.scan", err)
		}
		if creator.Valid {
			f.CreatorName = &creator.String
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("forms.list", err)
	}
	return forms, nil
}
