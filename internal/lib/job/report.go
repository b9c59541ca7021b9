package job

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ReportWindow returns the previous calendar day in loc as [from, to).
func ReportWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	to := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	from := to.AddDate(0, 0, -1)
	return from, to
}

func (j *JobService) handleDailyReport(ctx context.Context, _ *asynq.Task) error {
	loc, err := j.cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid report timezone: %v: %w", err, asynq.SkipRetry)
	}

	from, to := ReportWindow(j.now(), loc)

	counts, err := j.deps.Leads.CountByStateBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to count leads for %s: %w", from.Format("2006-01-02"), err)
	}

	j.logger.Info().
		Str("day", from.Format("2006-01-02")).
		Int("total", counts.Total()).
		Msg("daily report computed")

	if err := j.deps.Mailer.SendDailyReportEmail(ctx, j.cfg.Mail.StaffAddress, from, counts); err != nil {
		return fmt.Errorf("failed to send daily report: %w", err)
	}
	return nil
}
