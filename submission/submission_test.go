package submission

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mbolis/quick-apply/apperr"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/forms"
	"github.com/mbolis/quick-apply/metrics"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/report"
	dbtest "github.com/mbolis/quick-apply/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
	seen   func(e notify.Event)
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	if n.seen != nil {
		n.seen(e)
	}
	return n.err
}

type fixture struct {
	db        *sql.DB
	store     *forms.Store
	coord     *Coordinator
	notifier  *recordingNotifier
	metrics   *metrics.Metrics
	applicant int64
	form      *model.Form
	q1, q2    *model.Question
}

func strPtr(s string) *string { return &s }

// newFixture builds the "Fellowship 2024" form: Q1 is a knockout text
// question expecting "YES", Q2 a plain text question.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.OpenDB(t)
	admin := dbtest.CreateUser(t, db, "Grace Admin", "grace@example.org", "admin")
	applicant := dbtest.CreateUser(t, db, "Ada Applicant", "ada@example.org", "user")

	m := metrics.New()
	store := forms.NewStore(db, 3, m)
	form, err := store.CreateForm(ctx, "Fellowship 2024", "", admin)
	if err != nil {
		t.Fatalf("create form: %v", err)
	}
	q1, err := store.AddQuestion(ctx, form.ID, model.QuestionSpec{Text: "Are you 18+?", Type: model.TypeText, IsKnockout: true, CorrectAnswer: strPtr("YES")})
	if err != nil {
		t.Fatalf("add q1: %v", err)
	}
	q2, err := store.AddQuestion(ctx, form.ID, model.QuestionSpec{Text: "Why apply?", Type: model.TypeText})
	if err != nil {
		t.Fatalf("add q2: %v", err)
	}

	n := &recordingNotifier{}
	return &fixture{
		db:        db,
		store:     store,
		coord:     NewCoordinator(db, n, m),
		notifier:  n,
		metrics:   m,
		applicant: applicant,
		form:      form,
		q1:        q1,
		q2:        q2,
	}
}

func (f *fixture) applications(t *testing.T) int {
	return dbtest.CountRows(t, f.db, "applications", "")
}

func TestSubmit_FellowshipScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reason := `Failed knockout question: "Are you 18+?"`

	cases := []struct {
		name     string
		answers  model.Answers
		rejected bool
	}{
		{"eligible", model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("Because...")}, false},
		{"wrong knockout answer", model.Answers{f.q1.ID: model.Text("NO"), f.q2.ID: model.Text("Because...")}, true},
		{"knockout omitted", model.Answers{f.q2.ID: model.Text("Because...")}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			app, err := f.coord.Submit(ctx, f.form.ID, f.applicant, c.answers)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if app.ID == 0 || app.FormID != f.form.ID || app.UserID != f.applicant || app.Status != model.StatusSubmitted {
				t.Fatalf("unexpected application %+v", app)
			}
			if app.IsRejected != c.rejected {
				t.Fatalf("expected rejected=%v, got %v", c.rejected, app.IsRejected)
			}
			if c.rejected && (app.RejectionReason == nil || *app.RejectionReason != reason) {
				t.Fatalf("expected reason %q, got %v", reason, app.RejectionReason)
			}
			if !c.rejected && app.RejectionReason != nil {
				t.Fatalf("expected no reason, got %q", *app.RejectionReason)
			}

			stored, err := report.NewReporter(f.db).Application(ctx, app.ID)
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			if stored.IsRejected != app.IsRejected || len(stored.Answers) != len(c.answers) {
				t.Fatalf("stored application differs: %+v", stored)
			}
		})
	}

	if got := testutil.ToFloat64(f.metrics.Submissions.WithLabelValues("rejected")); got != 2 {
		t.Fatalf("expected 2 rejected submissions counted, got %v", got)
	}
	if len(f.notifier.events) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(f.notifier.events))
	}
}

func TestSubmit_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		formID  int64
		answers model.Answers
	}{
		"missing form id":        {0, model.Answers{}},
		"missing answers":        {f.form.ID, nil},
		"unknown question":       {f.form.ID, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("x"), 9999: model.Text("?")}},
		"list for text question": {f.form.ID, model.Answers{f.q1.ID: model.Choices("YES"), f.q2.ID: model.Text("x")}},
		"required missing":       {f.form.ID, model.Answers{f.q1.ID: model.Text("YES")}},
		"required blank":         {f.form.ID, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("  ")}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.coord.Submit(ctx, c.formID, f.applicant, c.answers)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if n := f.applications(t); n != 0 {
		t.Fatalf("expected no applications, got %d", n)
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("expected no notifications, got %d", len(f.notifier.events))
	}
}

func TestSubmit_UnknownOrDeletedForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.coord.Submit(ctx, f.form.ID+50, f.applicant, model.Answers{}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := f.store.DeleteForm(ctx, f.form.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := f.coord.Submit(ctx, f.form.ID, f.applicant, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("x")})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if n := f.applications(t); n != 0 {
		t.Fatalf("expected no applications, got %d", n)
	}
}

func TestSubmit_InsertFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Submit(context.Background(), f.form.ID, 4242, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("x")})
	if err == nil {
		t.Fatalf("expected unknown user to fail the insert")
	}
	if n := f.applications(t); n != 0 {
		t.Fatalf("expected no applications, got %d", n)
	}
}

func TestSubmit_CanceledBeforeCommitLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.coord.beforeCommit = func(context.Context) { cancel() }

	_, err := f.coord.Submit(ctx, f.form.ID, f.applicant, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("x")})
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation cause, got %v", err)
	}
	if n := f.applications(t); n != 0 {
		t.Fatalf("expected no applications, got %d", n)
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestSubmit_AlreadyCanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.coord.Submit(ctx, f.form.ID, f.applicant, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("x")})
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if n := f.applications(t); n != 0 {
		t.Fatalf("expected no applications, got %d", n)
	}
}

func TestSubmit_LockTimeoutIsStorage(t *testing.T) {
	cfg := dbtest.Config(t)
	cfg.BusyTimeout = 100 * time.Millisecond
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	admin := dbtest.CreateUser(t, db, "Grace Admin", "grace@example.org", "admin")
	applicant := dbtest.CreateUser(t, db, "Ada Applicant", "ada@example.org", "user")
	form, err := forms.NewStore(db, 3, nil).CreateForm(ctx, "Fellowship 2024", "", admin)
	if err != nil {
		t.Fatalf("create form: %v", err)
	}

	holder, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer holder.Rollback()

	_, err = NewCoordinator(db, nil, nil).Submit(ctx, form.ID, applicant, model.Answers{})
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if !apperr.Retryable(err) {
		t.Fatalf("expected lock timeout to be retryable")
	}
}

func TestSubmit_ConcurrentDeleteWaitsForCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deleted := make(chan error, 1)
	f.coord.beforeCommit = func(context.Context) {
		go func() { deleted <- f.store.DeleteForm(context.Background(), f.form.ID) }()
		select {
		case err := <-deleted:
			t.Errorf("delete finished while the submission was open: %v", err)
		case <-time.After(150 * time.Millisecond):
		}
	}

	app, err := f.coord.Submit(ctx, f.form.ID, f.applicant, model.Answers{f.q1.ID: model.Text("YES"), f.q2.ID: model.Text("x")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatalf("delete after commit: %v", err)
	}

	// the application survives its form, with no title to show
	stored, err := report.NewReporter(f.db).Application(ctx, app.ID)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if stored.FormTitle != nil {
		t.Fatalf("expected nil form title for deleted form, got %q", *stored.FormTitle)
	}
	if stored.FormID != f.form.ID {
		t.Fatalf("expected form reference to be kept, got %d", stored.FormID)
	}
}

func TestSubmit_NotifierFailureKeepsApplication(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")

	var committedAtNotify int
	f.notifier.seen = func(notify.Event) {
		committedAtNotify = dbtest.CountRows(t, f.db, "applications", "")
	}

	app, err := f.coord.Submit(context.Background(), f.form.ID, f.applicant, model.Answers{f.q1.ID: model.Text("NO"), f.q2.ID: model.Text("x")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if committedAtNotify != 1 {
		t.Fatalf("expected notifier to run after commit, saw %d rows", committedAtNotify)
	}
	if n := f.applications(t); n != 1 {
		t.Fatalf("expected application to be kept, got %d", n)
	}
	if got := testutil.ToFloat64(f.metrics.NotifyFailures); got != 1 {
		t.Fatalf("expected 1 notify failure, got %v", got)
	}
	e := f.notifier.events[0]
	if e.ApplicationID != app.ID || !e.IsRejected || e.RejectionReason == nil {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestSubmit_ConcurrentSubmissionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		answer := "YES"
		if i%2 == 1 {
			answer = "NO"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Submit(ctx, f.form.ID, f.applicant, model.Answers{f.q1.ID: model.Text(answer), f.q2.ID: model.Text("x")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	stats, err := report.NewReporter(f.db).StatsForForm(ctx, f.form.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats != (model.Stats{Total: n, Approved: n / 2, Rejected: n / 2}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
