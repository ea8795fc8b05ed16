// Package report answers read-only questions about submitted applications.
// Every query is a single statement and so sees one committed snapshot.
package report

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/model"
)

type Reporter struct {
	db *sql.DB
}

func NewReporter(db *sql.DB) *Reporter {
	return &Reporter{db: db}
}

// StatsForForm counts applications for a form. A form without applications,
// or one that does not exist, yields zeros.
func (r *Reporter) StatsForForm(ctx context.Context, formID int64) (model.Stats, error) {
	var s model.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_rejected = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_rejected = 1 THEN 1 ELSE 0 END), 0)
		FROM applications
		WHERE form_id = ?`,
		formID,
	).Scan(&s.Total, &s.Approved, &s.Rejected)
	if err != nil {
		return model.Stats{}, database.Classify("report.stats", err)
	}
	return s, nil
}

// StatsForExistingForm is StatsForForm for callers that need the form to exist.
func (r *Reporter) StatsForExistingForm(ctx context.Context, formID int64) (model.Stats, error) {
	var s model.Stats
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			f.id,
			COUNT(a.id),
			COALESCE(SUM(CASE WHEN a.is_rejected = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN a.is_rejected = 1 THEN 1 ELSE 0 END), 0)
		FROM forms f
		LEFT OUTER JOIN applications a ON (a.form_id = f.id)
		WHERE f.id = ?
		GROUP BY f.id`,
		formID,
	).Scan(&id, &s.Total, &s.Approved, &s.Rejected)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Stats{}, apperr.NotFound("report.stats", "form %d not found", formID)
	}
	if err != nil {
		return model.Stats{}, database.Classify("report.stats", err)
	}
	return s, nil
}

const selectApplications = `
	SELECT
		a.id, a.form_id, f.title, a.user_id, u.full_name, u.email,
		a.answers, a.is_rejected, a.rejection_reason, a.status, a.submitted_at, a.updated_at
	FROM applications a
	LEFT OUTER JOIN forms f ON (f.id = a.form_id)
	LEFT OUTER JOIN users u ON (u.id = a.user_id)`

// ApplicationsForForm lists a form's applications newest first, each with
// the applicant's name and email.
func (r *Reporter) ApplicationsForForm(ctx context.Context, formID int64) ([]model.Application, error) {
	return r.queryApplications(ctx, "report.applications_for_form",
		selectApplications+`
		WHERE a.form_id = ?
		ORDER BY a.submitted_at DESC, a.id DESC`,
		formID,
	)
}

// ApplicationsForUser lists a user's applications newest first. FormTitle is
// nil for applications whose form has been deleted.
func (r *Reporter) ApplicationsForUser(ctx context.Context, userID int64) ([]model.Application, error) {
	return r.queryApplications(ctx, "report.applications_for_user",
		selectApplications+`
		WHERE a.user_id = ?
		ORDER BY a.submitted_at DESC, a.id DESC`,
		userID,
	)
}

func (r *Reporter) Application(ctx context.Context, applicationID int64) (*model.Application, error) {
	apps, err := r.queryApplications(ctx, "report.application",
		selectApplications+`
		WHERE a.id = ?`,
		applicationID,
	)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, apperr.NotFound("report.application", "application %d not found", applicationID)
	}
	return &apps[0], nil
}

func (r *Reporter) queryApplications(ctx context.Context, op, query string, args ...any) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.Classify(op, err)
	}
	defer rows.Close()

	apps := []model.Application{}
	for rows.Next() {
		var (
			a         model.Application
			formTitle sql.NullString
			userName  sql.NullString
			userEmail sql.NullString
			answers   string
			reason    sql.NullString
		)
		err = rows.Scan(
			&a.ID, &a.FormID, &formTitle, &a.UserID, &userName, &userEmail,
			&answers, &a.IsRejected, &reason, &a.Status, &a.SubmittedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, database.Classify(op+".scan", err)
		}
		if formTitle.Valid {
			a.FormTitle = &formTitle.String
		}
		if reason.Valid {
			a.RejectionReason = &reason.String
		}
		a.UserName = userName.String
		a.UserEmail = userEmail.String

		a.Answers, err = model.ParseAnswers([]byte(answers))
		if err != nil {
			return nil, apperr.Storage(op+".parse_answers", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(op, err)
	}
	return apps, nil
}
