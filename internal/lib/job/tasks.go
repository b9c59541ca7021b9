package job

import (
	"encoding/json"
	"time"

	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types, used by Asynq to route to handlers.
const (
	TypeLeadConfirmation  = "lead:confirmation"
	TypeLeadInternalAlert = "lead:internal_alert"
	TypeDailyReport       = "lead:daily_report"
	TypeProcessResume     = "lead:process_resume"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// LeadEmailPayload is the lead snapshot carried by the two notification
// tasks. Handlers use it as-is and never read the lead back.
type LeadEmailPayload struct {
	LeadID uuid.UUID `json:"lead_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

// ProcessResumePayload addresses the lead whose resume is backed up.
type ProcessResumePayload struct {
	LeadID uuid.UUID `json:"lead_id"`
}

func leadEmailTask(typename string, s model.LeadSnapshot) (*asynq.Task, error) {
	payload, err := json.Marshal(LeadEmailPayload{
		LeadID: s.LeadID,
		Email:  s.Email,
		Name:   s.Name,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		typename,
		payload,
		asynq.MaxRetry(MaxRetry),
		asynq.Queue(QueueCritical),
		asynq.Timeout(30*time.Second),
	), nil
}

// NewLeadConfirmationTask thanks the prospect described by s.
func NewLeadConfirmationTask(s model.LeadSnapshot) (*asynq.Task, error) {
	return leadEmailTask(TypeLeadConfirmation, s)
}

// NewLeadInternalAlertTask alerts staff about the prospect described by s.
func NewLeadInternalAlertTask(s model.LeadSnapshot) (*asynq.Task, error) {
	return leadEmailTask(TypeLeadInternalAlert, s)
}

// NewDailyReportTask is registered on the scheduler. Unique keeps two
// scheduler instances from sending the report twice.
func NewDailyReportTask() *asynq.Task {
	return asynq.NewTask(
		TypeDailyReport,
		nil,
		asynq.MaxRetry(MaxRetry),
		asynq.Queue(QueueLow),
		asynq.Timeout(time.Minute),
		asynq.Unique(time.Hour),
	)
}

// NewProcessResumeTask backs up the resume of lead id.
func NewProcessResumeTask(id uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessResumePayload{LeadID: id})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TypeProcessResume,
		payload,
		asynq.MaxRetry(MaxRetry),
		asynq.Queue(QueueDefault),
		asynq.Timeout(2*time.Minute),
	), nil
}
