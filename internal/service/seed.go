package service

import (
	"taxops/internal/model"
	"taxops/internal/rulebook"

	"github.com/google/uuid"
)

// seedRule is one entry of the baseline obligation set Init installs for a
// tenant. Seeds are keyed by code, so re-running Init refreshes them
// without duplicating.
type seedRule struct {
	Code       string
	Title      string
	SortOrder  int
	LegalBasis []string

	MatchCondition *rulebook.Condition
	Recurrence     rulebook.Recurrence
	DueRule        rulebook.DueRule
	TaskTemplate   rulebook.TaskTemplate
}

func (s seedRule) toModel(tenantID, versionID uuid.UUID) model.RulebookRule {
	return model.RulebookRule{
		TenantID:       tenantID,
		VersionID:      versionID,
		Code:           s.Code,
		Title:          s.Title,
		IsActive:       true,
		SortOrder:      s.SortOrder,
		LegalBasis:     s.LegalBasis,
		MatchCondition: s.MatchCondition,
		Recurrence:     s.Recurrence,
		DueRule:        s.DueRule,
		TaskTemplate:   s.TaskTemplate,
	}
}

// applyTo refreshes an existing rule from the seed without touching the
// office's own is_active choice.
func (s seedRule) applyTo(rule *model.RulebookRule) {
	rule.Title = s.Title
	rule.SortOrder = s.SortOrder
	rule.LegalBasis = s.LegalBasis
	rule.MatchCondition = s.MatchCondition
	rule.Recurrence = s.Recurrence
	rule.DueRule = s.DueRule
	rule.TaskTemplate = s.TaskTemplate
}

func vatPayerCondition() *rulebook.Condition {
	return &rulebook.Condition{All: []rulebook.Condition{
		{Field: rulebook.FieldIsVATPayer, Op: rulebook.OpEq, Value: true},
	}}
}

func employerCondition() *rulebook.Condition {
	return &rulebook.Condition{All: []rulebook.Condition{
		{Field: rulebook.FieldHasEmployees, Op: rulebook.OpEq, Value: true},
	}}
}

// defaultRuleSeeds is the baseline obligation catalogue new tenants start
// from. Offices tune it per version afterwards; per-client exceptions go
// through overrides.
func defaultRuleSeeds() []seedRule {
	return []seedRule{
		{
			Code:           "vat-return",
			Title:          "VAT return",
			SortOrder:      10,
			LegalBasis:     []string{"Tax Code art. 174(5)"},
			MatchCondition: vatPayerCondition(),
			Recurrence:     rulebook.Recurrence{Kind: rulebook.RecurrenceMonthly},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueDayOfMonth, Day: 25,
				Shift: rulebook.ShiftNext,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "File VAT return for {{period}} — {{client}}",
				Description:    "Prepare and submit the VAT return, due {{due_date}}.",
				TaskType:       "vat_return",
				Priority:       rulebook.PriorityHigh,
				ProofRequired:  true,
				AssigneePolicy: rulebook.AssigneeAccountManager,
			},
		},
		{
			Code:           "vat-payment",
			Title:          "VAT payment",
			SortOrder:      20,
			LegalBasis:     []string{"Tax Code art. 174(1)"},
			MatchCondition: vatPayerCondition(),
			Recurrence:     rulebook.Recurrence{Kind: rulebook.RecurrenceMonthly},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueDayOfMonth, Day: 28,
				Shift: rulebook.ShiftNext,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "Pay VAT for {{period}} — {{client}}",
				TaskType:       "tax_payment",
				Priority:       rulebook.PriorityHigh,
				AssigneePolicy: rulebook.AssigneeAccountManager,
			},
		},
		{
			Code:       "profit-tax-advance",
			Title:      "Profit tax advance payment",
			SortOrder:  30,
			LegalBasis: []string{"Tax Code art. 287"},
			MatchCondition: &rulebook.Condition{All: []rulebook.Condition{
				{Field: rulebook.FieldLegalForm, Op: rulebook.OpEq, Value: model.LegalFormCompany},
				{Field: rulebook.FieldTaxSystem, Op: rulebook.OpEq, Value: "general"},
			}},
			Recurrence: rulebook.Recurrence{Kind: rulebook.RecurrenceQuarterly},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueDayOfMonth, Day: 28,
				Shift: rulebook.ShiftNext,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "Profit tax advance for {{period}} — {{client}}",
				TaskType:       "tax_payment",
				Priority:       rulebook.PriorityNormal,
				AssigneePolicy: rulebook.AssigneeAccountManager,
			},
		},
		{
			Code:       "simplified-tax-annual",
			Title:      "Simplified taxation annual declaration",
			SortOrder:  40,
			LegalBasis: []string{"Tax Code art. 346.23"},
			MatchCondition: &rulebook.Condition{All: []rulebook.Condition{
				{Field: rulebook.FieldTaxSystem, Op: rulebook.OpIn, Value: []string{"simplified_income", "simplified_income_expense"}},
			}},
			Recurrence: rulebook.Recurrence{Kind: rulebook.RecurrenceAnnual},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueDayOfMonth, Day: 25, MonthOffset: intPtr(3),
				Shift: rulebook.ShiftNext,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "File simplified-tax declaration for {{period}} — {{client}}",
				TaskType:       "tax_return",
				Priority:       rulebook.PriorityHigh,
				ProofRequired:  true,
				AssigneePolicy: rulebook.AssigneeAccountManager,
			},
		},
		{
			Code:       "annual-financial-statements",
			Title:      "Annual financial statements",
			SortOrder:  50,
			LegalBasis: []string{"Accounting Law art. 18"},
			MatchCondition: &rulebook.Condition{All: []rulebook.Condition{
				{Field: rulebook.FieldLegalForm, Op: rulebook.OpEq, Value: model.LegalFormCompany},
			}},
			Recurrence: rulebook.Recurrence{Kind: rulebook.RecurrenceAnnual},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueFixedDate, Month: 3, Day: 31,
				Shift: rulebook.ShiftNext,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "Submit annual financial statements for {{period}} — {{client}}",
				TaskType:       "financial_statements",
				Priority:       rulebook.PriorityHigh,
				ProofRequired:  true,
				AssigneePolicy: rulebook.AssigneeAccountManager,
			},
		},
		{
			Code:       "payroll-payout",
			Title:      "Payroll payout deadlines",
			SortOrder:  60,
			LegalBasis: []string{"Labour Code art. 136"},
			MatchCondition: &rulebook.Condition{All: []rulebook.Condition{
				{Field: rulebook.FieldHasEmployees, Op: rulebook.OpEq, Value: true},
				{Field: rulebook.FieldPayrollFrequency, Op: rulebook.OpEq, Value: model.PayrollSemiMonthly},
			}},
			Recurrence: rulebook.Recurrence{Kind: rulebook.RecurrenceSemiMonthly},
			DueRule: rulebook.DueRule{
				Kind:  rulebook.DueProfileDayOfMonth,
				Shift: rulebook.ShiftPrev,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "Run payroll for {{period}} — {{client}}",
				Description:    "Payout must reach employees by {{due_date}}.",
				TaskType:       "payroll",
				Priority:       rulebook.PriorityUrgent,
				AssigneePolicy: rulebook.AssigneePayrollOfficer,
			},
		},
		{
			Code:           "insurance-contributions",
			Title:          "Employee insurance contributions",
			SortOrder:      70,
			LegalBasis:     []string{"Tax Code art. 431(3)"},
			MatchCondition: employerCondition(),
			Recurrence:     rulebook.Recurrence{Kind: rulebook.RecurrenceMonthly},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueDayOfMonth, Day: 28,
				Shift: rulebook.ShiftNext,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "Pay insurance contributions for {{period}} — {{client}}",
				TaskType:       "tax_payment",
				Priority:       rulebook.PriorityNormal,
				AssigneePolicy: rulebook.AssigneePayrollOfficer,
			},
		},
		{
			Code:           "employee-income-tax",
			Title:          "Employee income tax remittance",
			SortOrder:      80,
			LegalBasis:     []string{"Tax Code art. 226(6)"},
			MatchCondition: employerCondition(),
			Recurrence:     rulebook.Recurrence{Kind: rulebook.RecurrenceMonthly},
			DueRule: rulebook.DueRule{
				Kind: rulebook.DueBusinessDayOfMonth, Day: 5,
				Shift: rulebook.ShiftNone,
			},
			TaskTemplate: rulebook.TaskTemplate{
				Title:          "Remit employee income tax for {{period}} — {{client}}",
				TaskType:       "tax_payment",
				Priority:       rulebook.PriorityNormal,
				AssigneePolicy: rulebook.AssigneePayrollOfficer,
			},
		},
	}
}

func intPtr(v int) *int { return &v }
