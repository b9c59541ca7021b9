package email

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

// Template names an embedded file under templates/.
type Template string

const (
	// TemplateLeadConfirmation thanks the prospect for the submission.
	TemplateLeadConfirmation Template = "lead_confirmation"

	// TemplateLeadAlert tells staff a new lead arrived.
	TemplateLeadAlert Template = "lead_alert"

	// TemplateDailyReport summarizes yesterday's leads per state.
	TemplateDailyReport Template = "daily_report"
)

// Templates lists every embedded template.
var Templates = []Template{TemplateLeadConfirmation, TemplateLeadAlert, TemplateDailyReport}
