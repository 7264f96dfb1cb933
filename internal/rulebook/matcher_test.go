package rulebook_test

import (
	"testing"

	"taxops/internal/rulebook"

	"github.com/stretchr/testify/assert"
)

func TestRuleApplies_NoConditionMatchesEveryClient(t *testing.T) {
	assert.True(t, rulebook.RuleApplies(nil, rulebook.Profile{}, nil))
}

func TestRuleApplies_DisabledOverrideWins(t *testing.T) {
	// Even a rule that matches is suppressed by a disabled override.
	cond := rulebook.Condition{Field: rulebook.FieldLegalForm, Op: rulebook.OpEq, Value: "company"}
	profile := vatCompany()

	assert.True(t, rulebook.RuleApplies(&cond, profile, nil))
	assert.True(t, rulebook.RuleApplies(&cond, profile, &rulebook.Override{IsEnabled: true}))
	assert.False(t, rulebook.RuleApplies(&cond, profile, &rulebook.Override{IsEnabled: false}))
}

func TestRuleApplies_EnabledOverrideDoesNotForceMatch(t *testing.T) {
	// An enabled override customizes a matching rule; it never makes a
	// non-matching rule apply.
	cond := rulebook.Condition{Field: rulebook.FieldLegalForm, Op: rulebook.OpEq, Value: "entrepreneur"}

	assert.False(t, rulebook.RuleApplies(&cond, vatCompany(), &rulebook.Override{IsEnabled: true}))
}

func TestTaskTemplate_Validate(t *testing.T) {
	valid := rulebook.TaskTemplate{Title: "VAT return {{period}}", TaskType: "vat_return"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, rulebook.TaskTemplate{TaskType: "vat_return"}.Validate())
	assert.Error(t, rulebook.TaskTemplate{Title: "x"}.Validate())
	assert.Error(t, rulebook.TaskTemplate{Title: "x", TaskType: "y", Priority: "critical"}.Validate())
	assert.Error(t, rulebook.TaskTemplate{Title: "x", TaskType: "y", AssigneePolicy: "ceo"}.Validate())
}
