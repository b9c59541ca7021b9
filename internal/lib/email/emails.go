package email

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/lead-intake/internal/model"
)

const (
	SubjectLeadConfirmation = "Thank you for your submission"
	SubjectLeadAlert        = "New Lead Submission"
)

// LeadEmailData feeds the confirmation and alert templates.
type LeadEmailData struct {
	Name  string
	Email string
}

// StateCount is one row of the daily report.
type StateCount struct {
	State model.LeadState
	Count int
}

// DailyReportData feeds the daily report template.
type DailyReportData struct {
	Date   string
	Counts []StateCount
	Total  int
}

// SendLeadConfirmationEmail thanks the prospect at to.
func (c *Client) SendLeadConfirmationEmail(ctx context.Context, to, name string) error {
	return c.SendEmail(ctx, to, SubjectLeadConfirmation, TemplateLeadConfirmation, LeadEmailData{
		Name:  name,
		Email: to,
	})
}

// SendLeadAlertEmail tells the staff address about the lead.
func (c *Client) SendLeadAlertEmail(ctx context.Context, staff, leadEmail, name string) error {
	return c.SendEmail(ctx, staff, SubjectLeadAlert, TemplateLeadAlert, LeadEmailData{
		Name:  name,
		Email: leadEmail,
	})
}

// NewDailyReportData orders counts by lifecycle state, listing zero rows too.
func NewDailyReportData(day time.Time, counts model.StateCounts) DailyReportData {
	data := DailyReportData{Date: day.Format("2006-01-02")}
	for _, state := range model.LeadStates {
		data.Counts = append(data.Counts, StateCount{State: state, Count: counts[state]})
	}
	data.Total = counts.Total()
	return data
}

// SendDailyReportEmail sends the per-state summary for day to staff.
func (c *Client) SendDailyReportEmail(ctx context.Context, staff string, day time.Time, counts model.StateCounts) error {
	data := NewDailyReportData(day, counts)
	subject := fmt.Sprintf("Daily lead report for %s", data.Date)
	return c.SendEmail(ctx, staff, subject, TemplateDailyReport, data)
}
