// Package submission records applications and their eligibility verdicts.
package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/eligibility"
	"github.com/mbolis/quick-apply/forms"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/metrics"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/notify"
)

const notifyTimeout = 5 * time.Second

type Coordinator struct {
	db       *sql.DB
	notifier notify.Notifier
	metrics  *metrics.Metrics

	// beforeCommit runs after the insert and before COMMIT. Set by tests.
	beforeCommit func(ctx context.Context)
}

func NewCoordinator(db *sql.DB, notifier notify.Notifier, m *metrics.Metrics) *Coordinator {
	return &Coordinator{db: db, notifier: notifier, metrics: m}
}

// Submit evaluates answers against the form's current questions and stores
// the application with its verdict. The form lookup, question read and insert
// share one transaction; any failure or cancellation before COMMIT leaves no
// application behind. Submit does not retry.
func (c *Coordinator) Submit(ctx context.Context, formID, userID int64, answers model.Answers) (*model.Application, error) {
	switch {
	case formID <= 0:
		return nil, apperr.Validation("submission.submit", "form id is required")
	case userID <= 0:
		return nil, apperr.Validation("submission.submit", "user id is required")
	case answers == nil:
		return nil, apperr.Validation("submission.submit", "answers are required")
	}

	start := time.Now()
	defer c.metrics.ObserveSubmitDuration(start)

	app, err := c.submit(ctx, formID, userID, answers)
	if err != nil {
		log.WithFields(log.Fields{"form_id": formID, "user_id": userID, "kind": apperr.KindOf(err)}).
			Debugf("submission.submit: %s", err)
		return nil, err
	}

	c.metrics.ObserveSubmission(app.IsRejected)
	log.WithFields(log.Fields{"form_id": formID, "application_id": app.ID, "rejected": app.IsRejected}).
		Debug("submission.submit: committed")

	c.notify(ctx, app)
	return app, nil
}

func (c *Coordinator) submit(ctx context.Context, formID, userID int64, answers model.Answers) (*model.Application, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.Classify("submission.submit.begin_tx", err)
	}
	defer tx.Rollback()

	if _, err := forms.ReadForm(ctx, tx, formID); err != nil {
		return nil, err
	}

	questions, err := forms.ReadQuestions(ctx, tx, formID)
	if err != nil {
		return nil, err
	}

	normalized, err := NormalizeAnswers(questions, answers)
	if err != nil {
		return nil, err
	}

	verdict := eligibility.Evaluate(questions, normalized)

	now := time.Now().UTC()
	app := &model.Application{
		FormID:      formID,
		UserID:      userID,
		Answers:     normalized,
		IsRejected:  verdict.Rejected,
		Status:      model.StatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if verdict.Rejected {
		reason := verdict.Reason
		app.RejectionReason = &reason
	}

	answersJson, err := json.Marshal(normalized)
	if err != nil {
		return nil, apperr.Storage("submission.submit.encode_answers", err)
	}

	// The SELECT makes the insert itself depend on the form still existing.
	err = tx.QueryRowContext(ctx, `
		INSERT INTO applications (form_id, user_id, answers, is_rejected, rejection_reason, status, submitted_at, updated_at)
		SELECT f.id, ?, ?, ?, ?, ?, ?, ?
		FROM forms f
		WHERE f.id = ?
		RETURNING id`,
		userID,
		string(answersJson),
		app.IsRejected,
		app.RejectionReason,
		app.Status,
		app.SubmittedAt,
		app.UpdatedAt,
		formID,
	).Scan(&app.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("submission.submit.insert", "form %d not found", formID)
	}
	if err != nil {
		return nil, database.Classify("submission.submit.insert", err)
	}

	if c.beforeCommit != nil {
		c.beforeCommit(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, database.Classify("submission.submit.commit", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, database.Classify("submission.submit.commit", err)
	}
	return app, nil
}

// notify runs after COMMIT with its own deadline so a canceled request
// still announces a verdict that was stored.
func (c *Coordinator) notify(ctx context.Context, app *model.Application) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := c.notifier.Notify(ctx, notify.EventFor(app)); err != nil {
		c.metrics.ObserveNotifyFailure()
		log.Warnf("submission.notify: application %d: %s", app.ID, err)
	}
}
