package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxops/internal/model"
	"taxops/internal/rulebook"
	"taxops/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store       *fakeStore
	hub         *fakeBroadcaster
	tasks       *fakeTaskRepo
	generations *fakeGenerationRepo
	svc         service.GenerationService
	tenant      model.Tenant
	version     model.RulebookVersion
}

func newFixture(t *testing.T, defaultTenantCodes []string) *fixture {
	t.Helper()
	store := newFakeStore()
	tasks := &fakeTaskRepo{s: store}
	generations := &fakeGenerationRepo{s: store}
	hub := &fakeBroadcaster{}

	svc := service.NewGenerationService(service.GenerationDeps{
		Tenants:     &fakeTenantRepo{s: store},
		Versions:    &fakeVersionRepo{s: store},
		Rules:       &fakeRuleRepo{s: store},
		Clients:     &fakeClientRepo{s: store},
		Overrides:   &fakeOverrideRepo{s: store},
		Generations: generations,
		Tasks:       tasks,
		Audits:      &fakeAuditRepo{s: store},
		Tx:          fakeTxManager{},
		Hub:         hub,
	}, defaultTenantCodes)

	tenant := model.Tenant{ID: uuid.New(), Code: "acme-office", Name: "Acme Office", IsActive: true}
	version := model.RulebookVersion{
		ID: uuid.New(), TenantID: tenant.ID, Code: "baseline-2026",
		Name: "Baseline 2026", IsActive: true,
		EffectiveFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	store.tenants = append(store.tenants, tenant)
	store.versions = append(store.versions, version)

	return &fixture{
		store: store, hub: hub, tasks: tasks, generations: generations,
		svc: svc, tenant: tenant, version: version,
	}
}

func (f *fixture) addRule(rule model.RulebookRule) model.RulebookRule {
	rule.ID = uuid.New()
	rule.TenantID = f.tenant.ID
	rule.VersionID = f.version.ID
	rule.IsActive = true
	f.store.rules = append(f.store.rules, rule)
	return rule
}

func (f *fixture) addClient(client model.Client) model.Client {
	client.ID = uuid.New()
	client.TenantID = f.tenant.ID
	if client.Status == "" {
		client.Status = model.ClientStatusActive
	}
	f.store.clients = append(f.store.clients, client)
	return client
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func vatReturnRule() model.RulebookRule {
	return model.RulebookRule{
		Code:  "vat-return",
		Title: "VAT return",
		MatchCondition: &rulebook.Condition{
			Field: rulebook.FieldIsVATPayer, Op: rulebook.OpEq, Value: true,
		},
		Recurrence: rulebook.Recurrence{Kind: rulebook.RecurrenceMonthly},
		DueRule: rulebook.DueRule{
			Kind: rulebook.DueDayOfMonth, Day: 20, Shift: rulebook.ShiftNext,
		},
		TaskTemplate: rulebook.TaskTemplate{
			Title:    "File VAT return for {{period}} — {{client}}",
			TaskType: "vat_return",
			Priority: rulebook.PriorityHigh,
		},
	}
}

// february2026 is the generation window used by most tests.
func february2026() service.RunOptions {
	return service.RunOptions{
		FromDate: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// GENERATION TESTS
// =============================================================================

func TestGenerateForTenant_NoActiveVersion(t *testing.T) {
	f := newFixture(t, nil)
	f.store.versions[0].IsActive = false

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	assert.Equal(t, "error", summary.Status)
	assert.Equal(t, service.NoActiveVersion, summary.Detail)
	assert.Empty(t, f.store.generations)
}

func TestGenerateForTenant_MatchesAndCreatesTask(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	vatClient := f.addClient(model.Client{Name: "Acme Trading", LegalForm: model.LegalFormCompany, IsVATPayer: boolPtr(true)})
	f.addClient(model.Client{Name: "No-VAT Consulting", LegalForm: model.LegalFormEntrepreneur, IsVATPayer: boolPtr(false)})

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	assert.Equal(t, "ok", summary.Status)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Errored)

	require.Len(t, summary.Items, 1)
	item := summary.Items[0]
	assert.Equal(t, vatClient.ID.String(), item.ClientID)
	assert.Equal(t, "vat-return", item.RuleCode)
	assert.Equal(t, "2026-02", item.PeriodKey)
	// 2026-03-20 is a Friday, so no business-day shift applies.
	assert.Equal(t, "2026-03-20", item.DueDate)

	require.Len(t, f.store.tasks, 1)
	task := f.store.tasks[0]
	assert.Equal(t, "File VAT return for 2026-02 — Acme Trading", task.Title)
	assert.Equal(t, "vat_return", task.TaskType)
	assert.Equal(t, rulebook.PriorityHigh, task.Priority)
	assert.Equal(t, model.TaskSourceRulebook, task.Source)
	assert.Equal(t, time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC), task.DueDate)

	require.Len(t, f.store.generations, 1)
	record := f.store.generations[0]
	assert.Equal(t, model.GenerationGenerated, record.Status)
	require.NotNil(t, record.GeneratedTaskID)
	assert.Equal(t, task.ID, *record.GeneratedTaskID)
}

func TestGenerateForTenant_SecondRunIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	first := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())
	second := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)

	// One record, one task, no matter how many times the window runs.
	assert.Len(t, f.store.generations, 1)
	assert.Len(t, f.store.tasks, 1)
}

func TestGenerateForTenant_InsertConflictFromRacingRunIsSkip(t *testing.T) {
	f := newFixture(t, nil)
	rule := f.addRule(vatReturnRule())
	client := f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	// A racing run inserted this unit's record after our lookup would have
	// happened; the lookup misses but the unique tuple rejects our insert.
	f.store.generations = append(f.store.generations, model.TaskGeneration{
		ID: uuid.New(), TenantID: f.tenant.ID, ClientID: client.ID, RuleID: rule.ID,
		PeriodKey: "2026-02", Status: model.GenerationPending,
	})
	f.generations.findMiss = true

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 0, summary.Errored)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, "record created by concurrent run", summary.Items[0].Detail)

	// The losing side inserts nothing and never doubles up the task.
	assert.Len(t, f.store.generations, 1)
	assert.Empty(t, f.store.tasks)
}

func TestGenerateForTenant_WeekendDueDateShifts(t *testing.T) {
	f := newFixture(t, nil)
	rule := vatReturnRule()
	// Day 7 of March 2026 is a Saturday; ShiftNext lands on Monday the 9th.
	rule.DueRule = rulebook.DueRule{Kind: rulebook.DueDayOfMonth, Day: 7, Shift: rulebook.ShiftNext}
	f.addRule(rule)
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	require.Equal(t, 1, summary.Created)
	assert.Equal(t, "2026-03-09", summary.Items[0].DueDate)
}

func TestGenerateForTenant_HolidaysFromOptions(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	opts := february2026()
	// Declaring Friday 2026-03-20 a holiday pushes the due date past the weekend.
	opts.Holidays = []time.Time{time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)}

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, opts)

	require.Equal(t, 1, summary.Created)
	assert.Equal(t, "2026-03-23", summary.Items[0].DueDate)
}

func TestGenerateForTenant_SemiMonthlyPayrollPeriods(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(model.RulebookRule{
		Code:  "payroll-payout",
		Title: "Payroll payout",
		MatchCondition: &rulebook.Condition{
			Field: rulebook.FieldHasEmployees, Op: rulebook.OpEq, Value: true,
		},
		Recurrence:   rulebook.Recurrence{Kind: rulebook.RecurrenceSemiMonthly},
		DueRule:      rulebook.DueRule{Kind: rulebook.DueProfileDayOfMonth},
		TaskTemplate: rulebook.TaskTemplate{Title: "Run payroll {{period}}", TaskType: "payroll"},
	})
	f.addClient(model.Client{
		Name:              "Acme Trading",
		EmployeeCount:     intPtr(15),
		PayrollFrequency:  model.PayrollSemiMonthly,
		PayrollAdvanceDay: 20,
		PayrollFinalDay:   5,
	})

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	require.Equal(t, 2, summary.Created)
	byPeriod := map[string]string{}
	for _, item := range summary.Items {
		byPeriod[item.PeriodKey] = item.DueDate
	}
	// Advance is paid inside the period month, final pay in the next one.
	assert.Equal(t, "2026-02-20", byPeriod["2026-02-A"])
	assert.Equal(t, "2026-03-05", byPeriod["2026-02-B"])
}

func TestGenerateForTenant_BadDueConfigIsolatedPerUnit(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	f.addRule(model.RulebookRule{
		Code:         "payroll-payout",
		Title:        "Payroll payout",
		Recurrence:   rulebook.Recurrence{Kind: rulebook.RecurrenceSemiMonthly},
		DueRule:      rulebook.DueRule{Kind: rulebook.DueProfileDayOfMonth},
		TaskTemplate: rulebook.TaskTemplate{Title: "Run payroll {{period}}", TaskType: "payroll"},
	})
	// VAT payer with no payroll days configured: the payroll units fail,
	// the VAT unit still generates.
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	assert.Equal(t, "ok", summary.Status)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 2, summary.Errored)

	// The failed units leave inspectable error records behind.
	errored := 0
	for _, g := range f.store.generations {
		if g.Status == model.GenerationError {
			errored++
			assert.NotEmpty(t, g.ErrorMessage)
			assert.Nil(t, g.GeneratedTaskID)
		}
	}
	assert.Equal(t, 2, errored)
	assert.Len(t, f.store.tasks, 1)
}

func TestGenerateForTenant_DisabledOverrideSuppressesRule(t *testing.T) {
	f := newFixture(t, nil)
	rule := f.addRule(vatReturnRule())
	client := f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	f.store.overrides = append(f.store.overrides, model.RuleOverride{
		ID: uuid.New(), TenantID: f.tenant.ID, ClientID: client.ID, RuleID: rule.ID,
		IsEnabled: false,
	})

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	assert.Equal(t, 0, summary.Created)
	assert.Empty(t, summary.Items)
	assert.Empty(t, f.store.generations)
}

func TestGenerateForTenant_OverrideSwapsDueRule(t *testing.T) {
	f := newFixture(t, nil)
	rule := f.addRule(vatReturnRule())
	client := f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	f.store.overrides = append(f.store.overrides, model.RuleOverride{
		ID: uuid.New(), TenantID: f.tenant.ID, ClientID: client.ID, RuleID: rule.ID,
		IsEnabled: true,
		DueRule:   &rulebook.DueRule{Kind: rulebook.DueDayOfMonth, Day: 5},
	})

	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())

	require.Equal(t, 1, summary.Created)
	assert.Equal(t, "2026-03-05", summary.Items[0].DueDate)
}

func TestGenerateForTenant_DryRunPersistsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	opts := february2026()
	opts.DryRun = true
	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, opts)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, "2026-03-20", summary.Items[0].DueDate)
	assert.Empty(t, f.store.generations)
	assert.Empty(t, f.store.tasks)
}

func TestGenerateForTenant_ClientFilter(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	target := f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})
	f.addClient(model.Client{Name: "Other Co", IsVATPayer: boolPtr(true)})

	opts := february2026()
	opts.ClientID = &target.ID
	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, opts)

	require.Equal(t, 1, summary.Created)
	assert.Equal(t, target.ID.String(), summary.Items[0].ClientID)
}

func TestGenerateForTenant_ForceRetryAfterTaskFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	// First run dies between record insert and task creation.
	f.tasks.failNext = errors.New("connection reset")
	first := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())
	assert.Equal(t, 1, first.Errored)
	require.Len(t, f.store.generations, 1)
	assert.Equal(t, model.GenerationError, f.store.generations[0].Status)
	assert.Contains(t, f.store.generations[0].ErrorMessage, "connection reset")
	assert.Empty(t, f.store.tasks)

	// A plain rerun refuses to touch the record.
	second := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, february2026())
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Contains(t, second.Items[0].Detail, "force_retry_without_linked_task")

	// The forced retry finishes the unit and clears the stored error.
	opts := february2026()
	opts.ForceRetryWithoutLinkedTask = true
	third := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, opts)
	assert.Equal(t, 1, third.Created)

	require.Len(t, f.store.tasks, 1)
	record := f.store.generations[0]
	assert.Equal(t, model.GenerationGenerated, record.Status)
	assert.Empty(t, record.ErrorMessage)
	require.NotNil(t, record.GeneratedTaskID)
}

func TestGenerateForTenant_QuarterlyWindow(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(model.RulebookRule{
		Code:         "profit-tax-advance",
		Title:        "Profit tax advance",
		Recurrence:   rulebook.Recurrence{Kind: rulebook.RecurrenceQuarterly},
		DueRule:      rulebook.DueRule{Kind: rulebook.DueDayOfMonth, Day: 28, Shift: rulebook.ShiftNext},
		TaskTemplate: rulebook.TaskTemplate{Title: "Profit tax {{period}}", TaskType: "tax_payment"},
	})
	f.addClient(model.Client{Name: "Acme Trading"})

	opts := service.RunOptions{
		FromDate: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC),
	}
	summary := f.svc.GenerateForTenant(context.Background(), f.tenant.ID, opts)

	require.Equal(t, 2, summary.Created)
	keys := []string{summary.Items[0].PeriodKey, summary.Items[1].PeriodKey}
	assert.Equal(t, []string{"2026-Q1", "2026-Q2"}, keys)
}

func TestRun_DefaultTenantsBroadcastAndAudit(t *testing.T) {
	f := newFixture(t, []string{"acme-office", "unknown-office"})
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	summaries := f.svc.Run(context.Background(), february2026())

	// The unknown default code is skipped, not fatal.
	require.Len(t, summaries, 1)
	assert.Equal(t, f.tenant.ID.String(), summaries[0].TenantID)
	assert.Equal(t, 1, summaries[0].Created)

	assert.Equal(t, 1, f.hub.count())
	require.NotEmpty(t, f.store.audits)
	assert.Equal(t, model.ActionRunGeneration, f.store.audits[len(f.store.audits)-1].Action)
}

func TestRun_FallsBackToAllActiveTenants(t *testing.T) {
	f := newFixture(t, nil)
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	inactive := model.Tenant{ID: uuid.New(), Code: "closed-office", IsActive: false}
	f.store.tenants = append(f.store.tenants, inactive)

	summaries := f.svc.Run(context.Background(), february2026())

	require.Len(t, summaries, 1)
	assert.Equal(t, f.tenant.ID.String(), summaries[0].TenantID)
}

func TestRun_ExplicitTenantWins(t *testing.T) {
	f := newFixture(t, []string{"some-other-office"})
	f.addRule(vatReturnRule())
	f.addClient(model.Client{Name: "Acme Trading", IsVATPayer: boolPtr(true)})

	opts := february2026()
	opts.TenantID = &f.tenant.ID
	summaries := f.svc.Run(context.Background(), opts)

	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Created)
}
