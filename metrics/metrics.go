// Package metrics holds the prometheus collectors for the services.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quickapply"

type Metrics struct {
	Submissions     *prometheus.CounterVec
	SubmitDuration  prometheus.Histogram
	QuestionsAdded  prometheus.Counter
	ConflictRetries *prometheus.CounterVec
	NotifyFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Committed applications by verdict.",
		}, []string{"verdict"}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time spent in the submission transaction, including failures.",
			Buckets:   prometheus.DefBuckets,
		}),
		QuestionsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_added_total",
			Help:      "Questions appended to forms.",
		}),
		ConflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Retries after a write conflict, by operation.",
		}, []string{"op"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Post-commit notifications that could not be delivered.",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Submissions, m.SubmitDuration, m.QuestionsAdded, m.ConflictRetries, m.NotifyFailures,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveSubmission(rejected bool) {
	if m == nil {
		return
	}
	verdict := "approved"
	if rejected {
		verdict = "rejected"
	}
	m.Submissions.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveSubmitDuration(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveQuestionAdded() {
	if m == nil {
		return
	}
	m.QuestionsAdded.Inc()
}

func (m *Metrics) ObserveConflictRetry(op string) {
	if m == nil {
		return
	}
	m.ConflictRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
