package email

import (
	"time"

	"github.com/deppfellow/lead-intake/internal/model"
)

// PreviewData holds sample data for rendering each template locally.
var PreviewData = map[Template]any{
	TemplateLeadConfirmation: LeadEmailData{Name: "Jane Smith", Email: "jane.smith@example.com"},
	TemplateLeadAlert:        LeadEmailData{Name: "Jane Smith", Email: "jane.smith@example.com"},
	TemplateDailyReport: NewDailyReportData(
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		model.StateCounts{model.LeadStatePending: 4, model.LeadStateReachedOut: 2},
	),
}
