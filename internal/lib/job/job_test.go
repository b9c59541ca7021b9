package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deppfellow/lead-intake/internal/config"
	"github.com/deppfellow/lead-intake/internal/lib/storage"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC)

type mailCall struct {
	Kind  string
	To    string
	Email string
	Name  string
}

type fakeMailer struct {
	mu       sync.Mutex
	calls    []mailCall
	failures int
	err      error
	counts   model.StateCounts
	day      time.Time
}

func (m *fakeMailer) record(c mailCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.failures != 0 {
		if m.failures > 0 {
			m.failures--
		}
		return m.err
	}
	return nil
}

func (m *fakeMailer) SendLeadConfirmationEmail(_ context.Context, to, name string) error {
	return m.record(mailCall{Kind: "confirmation", To: to, Email: to, Name: name})
}

func (m *fakeMailer) SendLeadAlertEmail(_ context.Context, staff, leadEmail, name string) error {
	return m.record(mailCall{Kind: "alert", To: staff, Email: leadEmail, Name: name})
}

func (m *fakeMailer) SendDailyReportEmail(_ context.Context, staff string, day time.Time, counts model.StateCounts) error {
	m.counts = counts
	m.day = day
	return m.record(mailCall{Kind: "report", To: staff})
}

type fakeLeads struct {
	leads    map[uuid.UUID]*model.Lead
	counts   model.StateCounts
	from, to time.Time
}

func (f *fakeLeads) GetByID(_ context.Context, id uuid.UUID) (*model.Lead, error) {
	if l, ok := f.leads[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("lead %s table:leads: %w", id, pgx.ErrNoRows)
}

func (f *fakeLeads) CountByStateBetween(_ context.Context, from, to time.Time) (model.StateCounts, error) {
	f.from, f.to = from, to
	return f.counts, nil
}

type fakeStorage struct {
	copies [][2]string
	err    error
}

func (s *fakeStorage) Copy(src, dst string) error {
	if s.err != nil {
		return s.err
	}
	s.copies = append(s.copies, [2]string{src, dst})
	return nil
}

type fakeLimiter struct {
	allow   int
	retryIn time.Duration
	calls   int
}

func (l *fakeLimiter) Allow(_ context.Context, _ string) (time.Duration, bool, error) {
	l.calls++
	if l.calls > l.allow {
		return l.retryIn, false, nil
	}
	return 0, true, nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	fail  map[string]error
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if err := e.fail[task.Type()]; err != nil {
		return nil, err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: QueueDefault, Type: task.Type()}, nil
}

func newTestService(deps Dependencies) (*JobService, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	cfg := &config.Config{
		Mail: config.MailConfig{StaffAddress: "staff@example.com"},
		Jobs: config.JobsConfig{Timezone: "UTC"},
	}
	j := &JobService{
		cfg:      cfg,
		logger:   &logger,
		deps:     deps,
		now:      func() time.Time { return fixedNow },
		attempts: func(context.Context) (int, int) { return 0, MaxRetry },
	}
	return j, buf
}

// process drives a task through the mux the way the Asynq processor does:
// failures consume an attempt until MaxRetry is exhausted or the error is
// not retryable, deferrals are re-run without consuming one.
func process(t *testing.T, j *JobService, task *asynq.Task) (attempts int, deferrals int, err error) {
	t.Helper()
	mux := j.Mux()
	retried := 0

	for i := 0; i < 50; i++ {
		r := retried
		j.attempts = func(context.Context) (int, int) { return r, MaxRetry }

		err = mux.ProcessTask(context.Background(), task)
		if err == nil {
			return retried + 1, deferrals, nil
		}
		if !IsFailure(err) {
			deferrals++
			continue
		}
		if errors.Is(err, asynq.SkipRetry) || retried >= MaxRetry {
			return retried + 1, deferrals, err
		}
		retried++
	}
	t.Fatal("task did not reach a terminal state")
	return 0, 0, nil
}

func snapshot() model.LeadSnapshot {
	return model.LeadSnapshot{LeadID: uuid.New(), Email: "jane.smith@example.com", Name: "Jane Smith"}
}

func TestConfirmationSucceeds(t *testing.T) {
	mailer := &fakeMailer{}
	j, logs := newTestService(Dependencies{Mailer: mailer})

	task, err := NewLeadConfirmationTask(snapshot())
	require.NoError(t, err)

	attempts, _, err := process(t, j, task)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	require.Len(t, mailer.calls, 1)
	assert.Equal(t, mailCall{Kind: "confirmation", To: "jane.smith@example.com", Email: "jane.smith@example.com", Name: "Jane Smith"}, mailer.calls[0])
	assert.Contains(t, logs.String(), "task started")
	assert.Contains(t, logs.String(), "task succeeded")
}

func TestInternalAlertGoesToStaff(t *testing.T) {
	mailer := &fakeMailer{}
	j, _ := newTestService(Dependencies{Mailer: mailer})

	task, err := NewLeadInternalAlertTask(snapshot())
	require.NoError(t, err)

	_, _, err = process(t, j, task)
	require.NoError(t, err)
	require.Len(t, mailer.calls, 1)
	assert.Equal(t, "staff@example.com", mailer.calls[0].To)
	assert.Equal(t, "jane.smith@example.com", mailer.calls[0].Email)
}

func TestTransientFailureIsRetried(t *testing.T) {
	mailer := &fakeMailer{failures: 2, err: errors.New("smtp: connection reset")}
	j, logs := newTestService(Dependencies{Mailer: mailer})

	task, err := NewLeadConfirmationTask(snapshot())
	require.NoError(t, err)

	attempts, _, err := process(t, j, task)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, mailer.calls, 3)
	assert.Contains(t, logs.String(), "task failed (attempt 1/4), retry scheduled")
	assert.Contains(t, logs.String(), "task failed (attempt 2/4), retry scheduled")
	assert.Contains(t, logs.String(), fixedNow.Add(RetryDelayInterval).Format(zerolog.TimeFieldFormat))
}

func TestPermanentFailureAfterFourAttempts(t *testing.T) {
	mailer := &fakeMailer{failures: -1, err: errors.New("smtp: 550 mailbox unavailable")}
	j, logs := newTestService(Dependencies{Mailer: mailer})

	task, err := NewLeadInternalAlertTask(snapshot())
	require.NoError(t, err)

	attempts, _, err := process(t, j, task)
	require.Error(t, err)
	assert.Equal(t, MaxRetry+1, attempts)
	assert.Len(t, mailer.calls, MaxRetry+1)
	assert.Contains(t, logs.String(), "permanent failure after 4 attempts")
}

func TestRateLimitDefersWithoutConsumingAttempts(t *testing.T) {
	mailer := &fakeMailer{}
	limiter := &fakeLimiter{allow: 0, retryIn: 20 * time.Second}
	j, logs := newTestService(Dependencies{Mailer: mailer, Limiter: limiter})

	mux := j.Mux()
	task, err := NewLeadConfirmationTask(snapshot())
	require.NoError(t, err)

	err = mux.ProcessTask(context.Background(), task)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 20*time.Second, rl.RetryIn)
	assert.False(t, IsFailure(err))
	assert.Equal(t, 20*time.Second, RetryDelay(0, err, task))
	assert.Empty(t, mailer.calls)
	assert.Contains(t, logs.String(), "rate limit reached, task deferred")
}

func TestRateLimitedTaskRunsInLaterWindow(t *testing.T) {
	mailer := &fakeMailer{}
	limiter := &fakeLimiter{allow: 0, retryIn: time.Second}
	j, _ := newTestService(Dependencies{Mailer: mailer, Limiter: limiter})

	task, err := NewLeadConfirmationTask(snapshot())
	require.NoError(t, err)

	mux := j.Mux()
	err = mux.ProcessTask(context.Background(), task)
	require.False(t, IsFailure(err))

	limiter.allow = limiter.calls + 1
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Len(t, mailer.calls, 1)
}

func TestRetryDelayIsFixed(t *testing.T) {
	for n := 0; n < MaxRetry; n++ {
		assert.Equal(t, 300*time.Second, RetryDelay(n, errors.New("boom"), nil))
	}
}

func TestProcessResumeBacksUpFile(t *testing.T) {
	resume := "resumes/3f2a.pdf"
	lead := &model.Lead{ID: uuid.New(), Resume: &resume}
	store := &fakeStorage{}
	j, _ := newTestService(Dependencies{
		Leads:   &fakeLeads{leads: map[uuid.UUID]*model.Lead{lead.ID: lead}},
		Storage: store,
	})

	task, err := NewProcessResumeTask(lead.ID)
	require.NoError(t, err)

	_, _, err = process(t, j, task)
	require.NoError(t, err)
	require.Len(t, store.copies, 1)
	assert.Equal(t, [2]string{"resumes/3f2a.pdf", "resumes/backups/3f2a_20240305070000.pdf"}, store.copies[0])
}

func TestProcessResumeWithoutResumeIsNoop(t *testing.T) {
	lead := &model.Lead{ID: uuid.New()}
	store := &fakeStorage{}
	j, logs := newTestService(Dependencies{
		Leads:   &fakeLeads{leads: map[uuid.UUID]*model.Lead{lead.ID: lead}},
		Storage: store,
	})

	task, err := NewProcessResumeTask(lead.ID)
	require.NoError(t, err)

	attempts, _, err := process(t, j, task)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, store.copies)
	assert.Contains(t, logs.String(), "nothing to process")
}

func TestProcessResumeMissingLeadIsNotRetried(t *testing.T) {
	j, logs := newTestService(Dependencies{
		Leads:   &fakeLeads{},
		Storage: &fakeStorage{},
	})

	task, err := NewProcessResumeTask(uuid.New())
	require.NoError(t, err)

	attempts, _, err := process(t, j, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, logs.String(), "permanent failure, task is not retryable")
}

func TestProcessResumeMissingFileIsNotRetried(t *testing.T) {
	resume := "resumes/gone.pdf"
	lead := &model.Lead{ID: uuid.New(), Resume: &resume}
	j, _ := newTestService(Dependencies{
		Leads:   &fakeLeads{leads: map[uuid.UUID]*model.Lead{lead.ID: lead}},
		Storage: &fakeStorage{err: fmt.Errorf("%w: %s", storage.ErrNotFound, resume)},
	})

	task, err := NewProcessResumeTask(lead.ID)
	require.NoError(t, err)

	attempts, _, err := process(t, j, task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1, attempts)
}

func TestMalformedPayloadIsNotRetried(t *testing.T) {
	j, _ := newTestService(Dependencies{Mailer: &fakeMailer{}})

	attempts, _, err := process(t, j, asynq.NewTask(TypeLeadConfirmation, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1, attempts)
}

func TestDailyReportCoversPreviousDay(t *testing.T) {
	leads := &fakeLeads{counts: model.StateCounts{model.LeadStatePending: 2, model.LeadStateReachedOut: 1}}
	mailer := &fakeMailer{}
	j, _ := newTestService(Dependencies{Leads: leads, Mailer: mailer})

	_, _, err := process(t, j, NewDailyReportTask())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), leads.from)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), leads.to)
	require.Len(t, mailer.calls, 1)
	assert.Equal(t, "staff@example.com", mailer.calls[0].To)
	assert.Equal(t, 3, mailer.counts.Total())
	assert.Equal(t, leads.from, mailer.day)
}

func TestReportWindowUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 2024-03-05 01:00 in UTC+9 is still 2024-03-04 in UTC.
	now := time.Date(2024, time.March, 4, 16, 0, 0, 0, time.UTC)

	from, to := ReportWindow(now, loc)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, loc), to)
}

func TestEnqueueLeadNotificationsQueuesExactlyTwo(t *testing.T) {
	enq := &fakeEnqueuer{}
	j, _ := newTestService(Dependencies{})
	j.Client = enq
	s := snapshot()

	require.NoError(t, j.EnqueueLeadNotifications(context.Background(), s))

	require.Len(t, enq.tasks, 2)
	assert.Equal(t, TypeLeadConfirmation, enq.tasks[0].Type())
	assert.Equal(t, TypeLeadInternalAlert, enq.tasks[1].Type())

	var p LeadEmailPayload
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &p))
	assert.Equal(t, LeadEmailPayload{LeadID: s.LeadID, Email: s.Email, Name: s.Name}, p)
}

func TestEnqueueLeadNotificationsAreIndependent(t *testing.T) {
	enq := &fakeEnqueuer{fail: map[string]error{TypeLeadConfirmation: errors.New("redis: connection refused")}}
	j, _ := newTestService(Dependencies{})
	j.Client = enq

	err := j.EnqueueLeadNotifications(context.Background(), snapshot())
	require.Error(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeLeadInternalAlert, enq.tasks[0].Type())
}

func TestEnqueueResumeProcessing(t *testing.T) {
	enq := &fakeEnqueuer{}
	j, _ := newTestService(Dependencies{})
	j.Client = enq
	id := uuid.New()

	require.NoError(t, j.EnqueueResumeProcessing(context.Background(), id))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeProcessResume, enq.tasks[0].Type())
}

func TestBackupKey(t *testing.T) {
	at := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "resumes/backups/cv_20240102030405.docx", BackupKey("resumes/cv.docx", at))
	assert.Equal(t, "backups/cv_20240102030405", BackupKey("cv", at))
}

func TestWindowKey(t *testing.T) {
	now := time.Date(2024, time.January, 2, 3, 4, 45, 0, time.UTC)

	key, retryIn := windowKey(TypeLeadConfirmation, now, time.Minute)
	assert.Equal(t, fmt.Sprintf("ratelimit:%s:%d", TypeLeadConfirmation, now.Truncate(time.Minute).Unix()/60), key)
	assert.Equal(t, 15*time.Second, retryIn)

	nextKey, _ := windowKey(TypeLeadConfirmation, now.Add(15*time.Second), time.Minute)
	assert.NotEqual(t, key, nextKey)
}
