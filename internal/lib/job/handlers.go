package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

func decodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		// A malformed payload never becomes valid on retry.
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

func (j *JobService) handleLeadConfirmation(ctx context.Context, t *asynq.Task) error {
	var p LeadEmailPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}

	if err := j.deps.Mailer.SendLeadConfirmationEmail(ctx, p.Email, p.Name); err != nil {
		return fmt.Errorf("failed to send confirmation for lead %s: %w", p.LeadID, err)
	}
	return nil
}

func (j *JobService) handleLeadInternalAlert(ctx context.Context, t *asynq.Task) error {
	var p LeadEmailPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}

	if err := j.deps.Mailer.SendLeadAlertEmail(ctx, j.cfg.Mail.StaffAddress, p.Email, p.Name); err != nil {
		return fmt.Errorf("failed to send internal alert for lead %s: %w", p.LeadID, err)
	}
	return nil
}
