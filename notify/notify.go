// Package notify tells the outside world about committed verdicts.
// Delivery failures are the caller's to log; they never undo a submission.
package notify

import (
	"context"

	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/model"
)

type Event struct {
	ApplicationID   int64   `json:"application_id"`
	FormID          int64   `json:"form_id"`
	UserID          int64   `json:"user_id"`
	IsRejected      bool    `json:"is_rejected"`
	RejectionReason *string `json:"rejection_reason"`
}

func EventFor(a *model.Application) Event {
	return Event{
		ApplicationID:   a.ID,
		FormID:          a.FormID,
		UserID:          a.UserID,
		IsRejected:      a.IsRejected,
		RejectionReason: a.RejectionReason,
	}
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Log writes events to the application log.
type Log struct{}

func (Log) Notify(_ context.Context, e Event) error {
	log.WithFields(log.Fields{
		"application_id": e.ApplicationID,
		"form_id":        e.FormID,
		"user_id":        e.UserID,
		"rejected":       e.IsRejected,
	}).Info("application verdict")
	return nil
}
