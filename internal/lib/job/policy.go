package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deppfellow/lead-intake/internal/metrics"
	"github.com/hibiken/asynq"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

const (
	// MaxRetry is the number of retries after the first attempt, so a task
	// runs at most MaxRetry+1 times.
	MaxRetry = 3

	// RetryDelayInterval is the fixed wait between two attempts.
	RetryDelayInterval = 300 * time.Second

	// RateLimitPerMinute caps how many tasks of one type start per minute.
	RateLimitPerMinute = 10
)

// RateLimitError defers a task that hit its per-minute start limit. It is
// not a failure: the task runs again after RetryIn without using an attempt.
type RateLimitError struct {
	Task    string
	RetryIn time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit reached for %s, retry in %s", e.Task, e.RetryIn)
}

// IsFailure tells Asynq which errors consume an attempt.
func IsFailure(err error) bool {
	var rl *RateLimitError
	return !errors.As(err, &rl)
}

// RetryDelay is the Asynq RetryDelayFunc: a fixed delay, or the wait until
// the next rate limit window for deferred tasks.
func RetryDelay(_ int, err error, _ *asynq.Task) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryIn > 0 {
		return rl.RetryIn
	}
	return RetryDelayInterval
}

// run wraps a handler with the rate limit, logging, metrics and tracing
// shared by every task type.
func (j *JobService) run(taskType string, handler asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		retried, maxRetry := j.attempts(ctx)
		attempt, maxAttempts := retried+1, maxRetry+1
		taskID, _ := asynq.GetTaskID(ctx)

		log := j.logger.With().
			Str("task", taskType).
			Str("task_id", taskID).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Logger()

		if j.deps.Limiter != nil {
			retryIn, allowed, err := j.deps.Limiter.Allow(ctx, taskType)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("rate limiter unavailable, running task anyway")
			case !allowed:
				log.Info().
					Dur("retry_in", retryIn).
					Time("next_run_at", j.now().Add(retryIn)).
					Msg("rate limit reached, task deferred")
				metrics.RecordJobOutcome(taskType, metrics.OutcomeDeferred, 0)
				return &RateLimitError{Task: taskType, RetryIn: retryIn}
			}
		}

		if j.nrApp != nil {
			txn := j.nrApp.StartTransaction(taskType)
			txn.AddAttribute("task_id", taskID)
			txn.AddAttribute("attempt", attempt)
			defer txn.End()
			ctx = newrelic.NewContext(ctx, txn)
		}

		log.Info().Msg("task started")
		start := j.now()

		err := handler(ctx, t)
		elapsed := j.now().Sub(start)

		if err != nil {
			if txn := newrelic.FromContext(ctx); txn != nil {
				txn.NoticeError(nrpkgerrors.Wrap(err))
			}
		}

		switch {
		case err == nil:
			log.Info().Dur("elapsed", elapsed).Msg("task succeeded")
			metrics.RecordJobOutcome(taskType, metrics.OutcomeSucceeded, elapsed)

		case errors.Is(err, asynq.SkipRetry):
			log.Error().Err(err).Msg("permanent failure, task is not retryable")
			metrics.RecordJobOutcome(taskType, metrics.OutcomeFailed, elapsed)

		case attempt >= maxAttempts:
			log.Error().Err(err).Msgf("permanent failure after %d attempts", attempt)
			metrics.RecordJobOutcome(taskType, metrics.OutcomeFailed, elapsed)

		default:
			log.Warn().
				Err(err).
				Time("next_retry_at", j.now().Add(RetryDelay(retried, err, t))).
				Msgf("task failed (attempt %d/%d), retry scheduled", attempt, maxAttempts)
			metrics.RecordJobOutcome(taskType, metrics.OutcomeRetried, elapsed)
		}

		return err
	}
}
