package app

import (
	"database/sql"

	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/forms"
	"github.com/mbolis/quick-apply/metrics"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/report"
	"github.com/mbolis/quick-apply/submission"
	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	*sql.DB
	config.Config

	Forms       *forms.Store
	Submissions *submission.Coordinator
	Reports     *report.Reporter

	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// New wires the services on db and registers their metrics on a fresh registry.
func New(db *sql.DB, cfg config.Config, notifier notify.Notifier) (App, error) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return App{}, err
	}

	return App{
		DB:          db,
		Config:      cfg,
		Forms:       forms.NewStore(db, cfg.ConflictRetries, m),
		Submissions: submission.NewCoordinator(db, notifier, m),
		Reports:     report.NewReporter(db),
		Metrics:     m,
		Registry:    reg,
	}, nil
}
