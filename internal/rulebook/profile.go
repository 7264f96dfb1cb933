package rulebook

import "strings"

// Profile field names usable in rule conditions and due rules.
const (
	FieldLegalForm        = "legal_form"
	FieldStatus           = "status"
	FieldTaxSystem        = "tax_system"
	FieldIsVATPayer       = "is_vat_payer"
	FieldHasEmployees     = "has_employees"
	FieldEmployeeCount    = "employee_count"
	FieldTaxTags          = "tax_tags"
	FieldPayrollFrequency = "payroll_frequency"
	FieldTimezone         = "timezone"

	ProfileFieldPayrollAdvanceDay = "payroll_advance_day"
	ProfileFieldPayrollFinalDay   = "payroll_final_day"
)

// Profile is the runtime projection of a client used for rule matching and
// due date resolution. It is rebuilt from the client row on every run and
// never persisted. Pointer fields distinguish "not filled in" from a real
// zero value: a missing attribute makes any predicate on it a non-match.
type Profile struct {
	ClientID         string
	LegalForm        string
	Status           string
	TaxSystem        string
	IsVATPayer       *bool
	EmployeeCount    *int
	TaxTags          []string
	Timezone         string
	PayrollFrequency string

	// Day-of-month the client pays the payroll advance / final salary.
	// Zero means not configured.
	PayrollAdvanceDay int
	PayrollFinalDay   int
}

// HasEmployees is derived from the employee count; unknown count means
// unknown employment status.
func (p Profile) HasEmployees() (bool, bool) {
	if p.EmployeeCount == nil {
		return false, false
	}
	return *p.EmployeeCount > 0, true
}

// Field resolves a named attribute. The second return reports whether the
// attribute is present on this profile; absent attributes never match.
func (p Profile) Field(name string) (any, bool) {
	switch strings.ToLower(name) {
	case FieldLegalForm:
		return p.LegalForm, p.LegalForm != ""
	case FieldStatus:
		return p.Status, p.Status != ""
	case FieldTaxSystem:
		return p.TaxSystem, p.TaxSystem != ""
	case FieldIsVATPayer:
		if p.IsVATPayer == nil {
			return nil, false
		}
		return *p.IsVATPayer, true
	case FieldHasEmployees:
		v, ok := p.HasEmployees()
		if !ok {
			return nil, false
		}
		return v, true
	case FieldEmployeeCount:
		if p.EmployeeCount == nil {
			return nil, false
		}
		return *p.EmployeeCount, true
	case FieldTaxTags:
		return p.TaxTags, len(p.TaxTags) > 0
	case FieldPayrollFrequency:
		return p.PayrollFrequency, p.PayrollFrequency != ""
	case FieldTimezone:
		return p.Timezone, p.Timezone != ""
	default:
		return nil, false
	}
}

// PayrollDay returns the configured payroll day for a profile_day_of_month
// due rule field. Zero with ok=false means the client never configured it.
func (p Profile) PayrollDay(field string) (int, bool) {
	switch field {
	case ProfileFieldPayrollAdvanceDay:
		return p.PayrollAdvanceDay, p.PayrollAdvanceDay > 0
	case ProfileFieldPayrollFinalDay:
		return p.PayrollFinalDay, p.PayrollFinalDay > 0
	default:
		return 0, false
	}
}
