package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taxops/internal/model"
	"taxops/internal/repository"
	"taxops/internal/rulebook"

	"github.com/google/uuid"
)

// NoActiveVersion is the reported per-tenant condition when a generation
// run finds no active rulebook version. It is a summary outcome, not a Go
// error: the caller still gets results for the other tenants.
const NoActiveVersion = "NO_ACTIVE_VERSION"

// Item outcome constants mirror the summary counters.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeErrored = "errored"
)

// --- DTOs ---

// RunOptions describes one trigger invocation. Zero dates fall back to the
// default window: start of the current month through the end of the month
// two months ahead.
type RunOptions struct {
	TenantID                    *uuid.UUID
	ClientID                    *uuid.UUID
	FromDate                    time.Time
	ToDate                      time.Time
	Holidays                    []time.Time
	DryRun                      bool
	ForceRetryWithoutLinkedTask bool
}

// GenerationItem is the outcome of one (client, rule, period) unit.
type GenerationItem struct {
	ClientID  string `json:"client_id"`
	RuleCode  string `json:"rule_code"`
	PeriodKey string `json:"period_key"`
	Outcome   string `json:"outcome"`
	DueDate   string `json:"due_date,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// TenantRunSummary aggregates one tenant's run. Status is "ok" even when
// individual items errored; "error" means the run itself could not proceed.
type TenantRunSummary struct {
	TenantID string           `json:"tenant_id"`
	Status   string           `json:"status"`
	Detail   string           `json:"detail,omitempty"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Created  int              `json:"created"`
	Skipped  int              `json:"skipped"`
	Errored  int              `json:"errored"`
	Items    []GenerationItem `json:"items,omitempty"`
}

// --- Interface ---

// Broadcaster pushes run summaries to connected dashboards. The websocket
// hub satisfies it; a nil broadcaster is allowed.
type Broadcaster interface {
	BroadcastJSON(v any)
}

type GenerationService interface {
	// Run resolves the target tenant set (explicit tenant, configured
	// defaults, or all active tenants) and generates each independently.
	Run(ctx context.Context, opts RunOptions) []TenantRunSummary
	// GenerateForTenant runs the engine for one tenant over [FromDate, ToDate].
	GenerateForTenant(ctx context.Context, tenantID uuid.UUID, opts RunOptions) TenantRunSummary
	ListGenerations(ctx context.Context, tenantID uuid.UUID, filter repository.GenerationFilter, page, limit int) ([]model.TaskGeneration, int64, error)
}

type generationService struct {
	tenants     repository.TenantRepository
	versions    repository.RulebookVersionRepository
	rules       repository.RulebookRuleRepository
	clients     repository.ClientRepository
	overrides   repository.RuleOverrideRepository
	generations repository.TaskGenerationRepository
	tasks       repository.TaskRepository
	audits      repository.AuditLogRepository
	txm         repository.TransactionManager
	hub         Broadcaster

	// Tenant codes scheduled runs fall back to when no tenant is given.
	// Empty means "all active tenants".
	defaultTenantCodes []string
}

// GenerationDeps bundles the collaborators of the orchestrator.
type GenerationDeps struct {
	Tenants     repository.TenantRepository
	Versions    repository.RulebookVersionRepository
	Rules       repository.RulebookRuleRepository
	Clients     repository.ClientRepository
	Overrides   repository.RuleOverrideRepository
	Generations repository.TaskGenerationRepository
	Tasks       repository.TaskRepository
	Audits      repository.AuditLogRepository
	Tx          repository.TransactionManager
	Hub         Broadcaster
}

func NewGenerationService(deps GenerationDeps, defaultTenantCodes []string) GenerationService {
	return &generationService{
		tenants:            deps.Tenants,
		versions:           deps.Versions,
		rules:              deps.Rules,
		clients:            deps.Clients,
		overrides:          deps.Overrides,
		generations:        deps.Generations,
		tasks:              deps.Tasks,
		audits:             deps.Audits,
		txm:                deps.Tx,
		hub:                deps.Hub,
		defaultTenantCodes: defaultTenantCodes,
	}
}

// --- Implementation ---

func (s *generationService) Run(ctx context.Context, opts RunOptions) []TenantRunSummary {
	opts = withDefaultWindow(opts)

	tenantIDs, err := s.resolveTenants(ctx, opts)
	if err != nil {
		return []TenantRunSummary{{Status: "error", Detail: "failed to resolve tenants: " + err.Error()}}
	}

	summaries := make([]TenantRunSummary, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		summary := s.GenerateForTenant(ctx, tenantID, opts)
		summaries = append(summaries, summary)

		if s.hub != nil {
			s.hub.BroadcastJSON(map[string]any{"event": "generation_run", "summary": summary})
		}
		s.writeAuditLog(ctx, model.ActionRunGeneration, tenantID.String(), summary)
	}
	return summaries
}

func (s *generationService) resolveTenants(ctx context.Context, opts RunOptions) ([]uuid.UUID, error) {
	if opts.TenantID != nil {
		return []uuid.UUID{*opts.TenantID}, nil
	}
	if len(s.defaultTenantCodes) > 0 {
		ids := make([]uuid.UUID, 0, len(s.defaultTenantCodes))
		for _, code := range s.defaultTenantCodes {
			tenant, err := s.tenants.GetByCode(ctx, code)
			if err != nil {
				log.Printf("generation: skipping unknown default tenant %q: %v", code, err)
				continue
			}
			ids = append(ids, tenant.ID)
		}
		return ids, nil
	}
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (s *generationService) GenerateForTenant(ctx context.Context, tenantID uuid.UUID, opts RunOptions) TenantRunSummary {
	opts = withDefaultWindow(opts)
	summary := TenantRunSummary{TenantID: tenantID.String(), Status: "ok", DryRun: opts.DryRun}

	version, err := s.versions.FindActive(ctx, tenantID)
	if err != nil {
		return fatalSummary(summary, "failed to load active version: "+err.Error())
	}
	if version == nil {
		return fatalSummary(summary, NoActiveVersion)
	}

	rules, err := s.rules.ListActive(ctx, tenantID, version.ID)
	if err != nil {
		return fatalSummary(summary, "failed to load rules: "+err.Error())
	}
	clients, err := s.clients.ListActive(ctx, tenantID, opts.ClientID)
	if err != nil {
		return fatalSummary(summary, "failed to load clients: "+err.Error())
	}

	calendar := rulebook.NewCalendar(opts.Holidays)

	for i := range clients {
		client := clients[i]
		profile := ProfileFromClient(client)

		overrides, err := s.overrides.ListByClient(ctx, tenantID, client.ID)
		if err != nil {
			// Override load failure poisons only this client.
			summary.Errored++
			summary.Items = append(summary.Items, GenerationItem{
				ClientID: client.ID.String(),
				Outcome:  OutcomeErrored,
				Detail:   "failed to load overrides: " + err.Error(),
			})
			continue
		}
		overrideByRule := make(map[uuid.UUID]*model.RuleOverride, len(overrides))
		for j := range overrides {
			overrideByRule[overrides[j].RuleID] = &overrides[j]
		}

		for j := range rules {
			rule := rules[j]
			override := overrideByRule[rule.ID]

			if !rulebook.RuleApplies(rule.MatchCondition, profile, toEngineOverride(override)) {
				continue
			}

			periods, err := rulebook.ExpandPeriods(rule.Recurrence, opts.FromDate, opts.ToDate)
			if err != nil {
				summary.Errored++
				summary.Items = append(summary.Items, GenerationItem{
					ClientID: client.ID.String(),
					RuleCode: rule.Code,
					Outcome:  OutcomeErrored,
					Detail:   "invalid recurrence: " + err.Error(),
				})
				continue
			}

			dueRule := rule.DueRule
			template := rule.TaskTemplate
			if override != nil {
				if override.DueRule != nil {
					dueRule = *override.DueRule
				}
				if override.TaskTemplate != nil {
					template = *override.TaskTemplate
				}
			}

			for _, period := range periods {
				item := s.processUnit(ctx, tenantID, client, rule, period, dueRule, template, profile, calendar, opts)
				switch item.Outcome {
				case OutcomeCreated:
					summary.Created++
				case OutcomeSkipped:
					summary.Skipped++
				default:
					summary.Errored++
				}
				summary.Items = append(summary.Items, item)
			}
		}
	}
	return summary
}

// processUnit handles one (client, rule, period) combination end to end.
// Failures stay inside the unit: they land on the generation record and in
// the summary, never in the orchestrator's control flow.
func (s *generationService) processUnit(
	ctx context.Context,
	tenantID uuid.UUID,
	client model.Client,
	rule model.RulebookRule,
	period rulebook.Period,
	dueRule rulebook.DueRule,
	template rulebook.TaskTemplate,
	profile rulebook.Profile,
	calendar rulebook.Calendar,
	opts RunOptions,
) GenerationItem {
	item := GenerationItem{
		ClientID:  client.ID.String(),
		RuleCode:  rule.Code,
		PeriodKey: period.Key,
	}

	existing, err := s.generations.Find(ctx, tenantID, client.ID, rule.ID, period.Key)
	if err != nil {
		item.Outcome = OutcomeErrored
		item.Detail = "failed to look up generation record: " + err.Error()
		return item
	}

	if existing != nil {
		if existing.GeneratedTaskID != nil {
			item.Outcome = OutcomeSkipped
			item.Detail = "task already generated"
			return item
		}
		if !opts.ForceRetryWithoutLinkedTask || opts.DryRun {
			item.Outcome = OutcomeSkipped
			item.Detail = "record exists without task; pass force_retry_without_linked_task to retry"
			return item
		}
		// Retry path: the previous run died between record and task.
		existing.ErrorMessage = ""
		existing.Status = model.GenerationPending
		return s.attemptTask(ctx, existing, client, rule, template, item)
	}

	due, dueErr := rulebook.ResolveDueDate(dueRule, period, profile, calendar)

	if opts.DryRun {
		if dueErr != nil {
			item.Outcome = OutcomeErrored
			item.Detail = dueErr.Error()
			return item
		}
		item.Outcome = OutcomeCreated
		item.DueDate = due.Format("2006-01-02")
		item.Detail = "dry run: no record persisted"
		return item
	}

	record := &model.TaskGeneration{
		TenantID:    tenantID,
		ClientID:    client.ID,
		RuleID:      rule.ID,
		PeriodKey:   period.Key,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Status:      model.GenerationPending,
		GenerationContext: map[string]any{
			"rule_code":   rule.Code,
			"client_name": client.Name,
		},
	}

	if dueErr != nil {
		// Bad due rule configuration: persist the failure on the record so
		// it shows up in inspection, then move on.
		record.ScheduledDueDate = period.End
		record.Status = model.GenerationError
		record.ErrorMessage = dueErr.Error()
		if _, insErr := s.generations.Insert(ctx, record); insErr != nil {
			item.Detail = dueErr.Error() + "; additionally failed to persist record: " + insErr.Error()
		} else {
			item.Detail = dueErr.Error()
		}
		item.Outcome = OutcomeErrored
		return item
	}

	record.ScheduledDueDate = due
	item.DueDate = due.Format("2006-01-02")

	created, err := s.generations.Insert(ctx, record)
	if err != nil {
		item.Outcome = OutcomeErrored
		item.Detail = "failed to insert generation record: " + err.Error()
		return item
	}
	if !created {
		// Another invocation won the insert race. The unique key did its
		// job; treat the unit as already generated.
		item.Outcome = OutcomeSkipped
		item.Detail = "record created by concurrent run"
		return item
	}

	return s.attemptTask(ctx, record, client, rule, template, item)
}

// attemptTask creates the linked task and marks the record generated, as
// one transaction. On failure the record is left behind with status=error
// so a forced retry can pick it up.
func (s *generationService) attemptTask(
	ctx context.Context,
	record *model.TaskGeneration,
	client model.Client,
	rule model.RulebookRule,
	template rulebook.TaskTemplate,
	item GenerationItem,
) GenerationItem {
	item.DueDate = record.ScheduledDueDate.Format("2006-01-02")

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		task := &model.Task{
			TenantID:      record.TenantID,
			ClientID:      client.ID,
			Title:         renderTemplate(template.Title, client, record),
			Description:   renderTemplate(template.Description, client, record),
			TaskType:      template.TaskType,
			Priority:      taskPriority(template),
			DueDate:       record.ScheduledDueDate,
			ProofRequired: template.ProofRequired,
			Status:        model.TaskPending,
			Source:        model.TaskSourceRulebook,
			SourceRuleID:  &rule.ID,
		}
		if err := s.tasks.Create(txCtx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		record.GeneratedTaskID = &task.ID
		record.Status = model.GenerationGenerated
		record.ErrorMessage = ""
		return s.generations.Update(txCtx, record)
	})
	if err != nil {
		record.GeneratedTaskID = nil
		record.Status = model.GenerationError
		record.ErrorMessage = err.Error()
		if updErr := s.generations.Update(ctx, record); updErr != nil {
			log.Printf("generation: failed to record error on %s/%s: %v", item.RuleCode, item.PeriodKey, updErr)
		}
		item.Outcome = OutcomeErrored
		item.Detail = err.Error()
		return item
	}

	item.Outcome = OutcomeCreated
	return item
}

func (s *generationService) ListGenerations(ctx context.Context, tenantID uuid.UUID, filter repository.GenerationFilter, page, limit int) ([]model.TaskGeneration, int64, error) {
	return s.generations.List(ctx, tenantID, filter, page, limit)
}

// --- Helpers ---

func withDefaultWindow(opts RunOptions) RunOptions {
	now := time.Now().UTC()
	if opts.FromDate.IsZero() {
		opts.FromDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.ToDate.IsZero() {
		opts.ToDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 3, -1)
	}
	return opts
}

func fatalSummary(summary TenantRunSummary, detail string) TenantRunSummary {
	summary.Status = "error"
	summary.Detail = detail
	return summary
}

func toEngineOverride(override *model.RuleOverride) *rulebook.Override {
	if override == nil {
		return nil
	}
	return &rulebook.Override{
		IsEnabled:    override.IsEnabled,
		DueRule:      override.DueRule,
		TaskTemplate: override.TaskTemplate,
	}
}

func taskPriority(template rulebook.TaskTemplate) string {
	if template.Priority == "" {
		return rulebook.PriorityNormal
	}
	return template.Priority
}

func (s *generationService) writeAuditLog(ctx context.Context, action, entityID string, details any) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		Action:   action,
		EntityID: entityID,
		Details:  string(detailsJSON),
	}

	// Best-effort audit log — don't fail the run if logging fails
	if err := s.audits.Create(ctx, &entry); err != nil {
		log.Printf("generation: failed to write audit log: %v", err)
	}
}
