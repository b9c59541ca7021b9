package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/lead-intake/internal/metrics"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// EnqueueLeadNotifications queues the prospect confirmation and the staff
// alert for a new lead. The two are independent: a failure to queue one
// does not prevent the other.
func (j *JobService) EnqueueLeadNotifications(ctx context.Context, s model.LeadSnapshot) error {
	confirmation, err := NewLeadConfirmationTask(s)
	if err != nil {
		return fmt.Errorf("failed to build confirmation task: %w", err)
	}
	alert, err := NewLeadInternalAlertTask(s)
	if err != nil {
		return fmt.Errorf("failed to build internal alert task: %w", err)
	}

	var errs []error
	for _, task := range []*asynq.Task{confirmation, alert} {
		if err := j.enqueue(ctx, task, s.LeadID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EnqueueResumeProcessing queues the resume backup of lead id.
func (j *JobService) EnqueueResumeProcessing(ctx context.Context, id uuid.UUID) error {
	task, err := NewProcessResumeTask(id)
	if err != nil {
		return fmt.Errorf("failed to build resume task: %w", err)
	}
	return j.enqueue(ctx, task, id)
}

func (j *JobService) enqueue(ctx context.Context, task *asynq.Task, leadID uuid.UUID) error {
	info, err := j.Client.EnqueueContext(ctx, task)
	metrics.RecordJobEnqueued(task.Type(), err)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s for lead %s: %w", task.Type(), leadID, err)
	}

	j.logger.Debug().
		Str("task", task.Type()).
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("lead_id", leadID.String()).
		Msg("task enqueued")
	return nil
}
