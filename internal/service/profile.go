package service

import (
	"strings"

	"taxops/internal/model"
	"taxops/internal/rulebook"
)

// ProfileFromClient projects a client row into the runtime profile the
// engine matches against. Computed fresh on every run; never stored.
func ProfileFromClient(client model.Client) rulebook.Profile {
	return rulebook.Profile{
		ClientID:          client.ID.String(),
		LegalForm:         client.LegalForm,
		Status:            client.Status,
		TaxSystem:         client.TaxSystem,
		IsVATPayer:        client.IsVATPayer,
		EmployeeCount:     client.EmployeeCount,
		TaxTags:           client.TaxTags,
		Timezone:          client.Timezone,
		PayrollFrequency:  client.PayrollFrequency,
		PayrollAdvanceDay: client.PayrollAdvanceDay,
		PayrollFinalDay:   client.PayrollFinalDay,
	}
}

// renderTemplate substitutes the {{client}}, {{period}} and {{due_date}}
// placeholders of a task template string.
func renderTemplate(text string, client model.Client, record *model.TaskGeneration) string {
	replacer := strings.NewReplacer(
		"{{client}}", client.Name,
		"{{period}}", record.PeriodKey,
		"{{due_date}}", record.ScheduledDueDate.Format("2006-01-02"),
	)
	return replacer.Replace(text)
}
