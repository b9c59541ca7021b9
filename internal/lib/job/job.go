// Package job runs the deferred work of the service on Asynq.
//
// Producers enqueue tasks through JobService; the worker side registers a
// handler per task type. Every handler runs through the same policy: a
// per-kind start rate limit, a fixed retry delay, a bounded number of
// attempts and structured logs for each step.
package job

import (
	"context"
	"time"

	"github.com/deppfellow/lead-intake/internal/config"
	"github.com/deppfellow/lead-intake/internal/logger"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// LeadReader is the read side of the lead store used by jobs.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	CountByStateBetween(ctx context.Context, from, to time.Time) (model.StateCounts, error)
}

// Mailer sends the emails jobs are responsible for.
type Mailer interface {
	SendLeadConfirmationEmail(ctx context.Context, to, name string) error
	SendLeadAlertEmail(ctx context.Context, staff, leadEmail, name string) error
	SendDailyReportEmail(ctx context.Context, staff string, day time.Time, counts model.StateCounts) error
}

// Storage is the file store holding resumes.
type Storage interface {
	Copy(src, dst string) error
}

// Enqueuer hands tasks to the queue. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dependencies are the collaborators of the task handlers. They are built
// after the server container, which is why they are injected separately.
type Dependencies struct {
	Leads   LeadReader
	Mailer  Mailer
	Storage Storage
	Limiter Limiter
}

// JobService owns the Asynq client (enqueue), server (workers) and
// scheduler (daily report).
type JobService struct {
	Client    Enqueuer
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler

	cfg    *config.Config
	logger *zerolog.Logger
	nrApp  *newrelic.Application
	deps   Dependencies

	now      func() time.Time
	attempts func(ctx context.Context) (retried, maxRetry int)
}

// NewJobService builds the client, server and scheduler against the
// configured Redis.
func NewJobService(log *zerolog.Logger, cfg *config.Config, loggerService *logger.LoggerService) *JobService {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)
	asynqLogger := newAsynqLogger(log)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Jobs.Concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			RetryDelayFunc: RetryDelay,
			IsFailure:      IsFailure,
			Logger:         asynqLogger,
		},
	)

	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: loc,
		Logger:   asynqLogger,
	})

	return &JobService{
		Client:    client,
		client:    client,
		server:    server,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    log,
		nrApp:     loggerService.GetApplication(),
		now:       time.Now,
		attempts:  attemptsFromContext,
	}
}

// InitHandlers injects the collaborators of the task handlers.
func (j *JobService) InitHandlers(deps Dependencies) {
	j.deps = deps
}

// Mux routes every task type to its handler, wrapped in the retry policy.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeLeadConfirmation, j.run(TypeLeadConfirmation, j.handleLeadConfirmation))
	mux.HandleFunc(TypeLeadInternalAlert, j.run(TypeLeadInternalAlert, j.handleLeadInternalAlert))
	mux.HandleFunc(TypeDailyReport, j.run(TypeDailyReport, j.handleDailyReport))
	mux.HandleFunc(TypeProcessResume, j.run(TypeProcessResume, j.handleProcessResume))
	return mux
}

// Start starts the workers and the scheduler. Neither call blocks.
func (j *JobService) Start() error {
	j.logger.Info().Int("concurrency", j.cfg.Jobs.Concurrency).Msg("starting background job server")
	if err := j.server.Start(j.Mux()); err != nil {
		return err
	}

	entryID, err := j.scheduler.Register(j.cfg.Jobs.DailyReportCron, NewDailyReportTask())
	if err != nil {
		j.server.Shutdown()
		return err
	}
	j.logger.Info().
		Str("cron", j.cfg.Jobs.DailyReportCron).
		Str("timezone", j.cfg.Jobs.Timezone).
		Str("entry_id", entryID).
		Msg("daily report scheduled")

	if err := j.scheduler.Start(); err != nil {
		j.server.Shutdown()
		return err
	}

	return nil
}

// Stop waits for running tasks and releases the Redis connections.
func (j *JobService) Stop() {
	j.logger.Info().Msg("stopping background job server")
	j.scheduler.Shutdown()
	j.server.Shutdown()
	if err := j.client.Close(); err != nil {
		j.logger.Error().Err(err).Msg("failed to close job client")
	}
}

// attemptsFromContext reads the retry counters Asynq puts on the handler
// context.
func attemptsFromContext(ctx context.Context) (int, int) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = MaxRetry
	}
	return retried, maxRetry
}
