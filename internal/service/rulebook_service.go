package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"taxops/internal/model"
	"taxops/internal/repository"
	"taxops/internal/rulebook"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateVersionRequest struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	EffectiveFrom string `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveTo   string `json:"effective_to"`                      // YYYY-MM-DD, nullable
}

type InitRequest struct {
	VersionCode     string `json:"version_code"`
	VersionName     string `json:"version_name"`
	EffectiveFrom   string `json:"effective_from"` // YYYY-MM-DD, defaults to Jan 1 of current year
	ActivateVersion bool   `json:"activate_version"`
	ReplaceRules    bool   `json:"replace_rules"`
}

type InitSummary struct {
	VersionID      string `json:"version_id"`
	VersionCode    string `json:"version_code"`
	VersionCreated bool   `json:"version_created"`
	RulesSeeded    int    `json:"rules_seeded"`
	RulesUpdated   int    `json:"rules_updated"`
	RulesReplaced  bool   `json:"rules_replaced"`
	Activated      bool   `json:"activated"`
}

type RuleRequest struct {
	Code       string   `json:"code" binding:"required"`
	VersionID  string   `json:"version_id" binding:"required"`
	Title      string   `json:"title" binding:"required"`
	IsActive   *bool    `json:"is_active"`
	SortOrder  int      `json:"sort_order"`
	LegalBasis []string `json:"legal_basis"`

	MatchCondition *rulebook.Condition   `json:"match_condition"`
	Recurrence     rulebook.Recurrence   `json:"recurrence" binding:"required"`
	DueRule        rulebook.DueRule      `json:"due_rule" binding:"required"`
	TaskTemplate   rulebook.TaskTemplate `json:"task_template" binding:"required"`
}

type VersionResponse struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	IsActive      bool    `json:"is_active"`
	CreatedAt     string  `json:"created_at"`
}

type RuleResponse struct {
	ID         string   `json:"id"`
	VersionID  string   `json:"version_id"`
	Code       string   `json:"code"`
	Title      string   `json:"title"`
	IsActive   bool     `json:"is_active"`
	SortOrder  int      `json:"sort_order"`
	LegalBasis []string `json:"legal_basis"`

	MatchCondition *rulebook.Condition   `json:"match_condition"`
	Recurrence     rulebook.Recurrence   `json:"recurrence"`
	DueRule        rulebook.DueRule      `json:"due_rule"`
	TaskTemplate   rulebook.TaskTemplate `json:"task_template"`
}

// --- Interface ---

type RulebookService interface {
	ListVersions(ctx context.Context, tenantID uuid.UUID) ([]VersionResponse, error)
	CreateVersion(ctx context.Context, tenantID uuid.UUID, req CreateVersionRequest, userID string) (VersionResponse, error)
	// ActivateVersion deactivates any other active version of the tenant
	// and activates this one atomically.
	ActivateVersion(ctx context.Context, tenantID uuid.UUID, versionID string, userID string) (VersionResponse, error)
	// Init finds-or-creates a version and upserts the baseline rule set;
	// re-running it is idempotent per rule code.
	Init(ctx context.Context, tenantID uuid.UUID, req InitRequest, userID string) (InitSummary, error)

	ListRules(ctx context.Context, tenantID uuid.UUID, versionID string) ([]RuleResponse, error)
	CreateRule(ctx context.Context, tenantID uuid.UUID, req RuleRequest, userID string) (RuleResponse, error)
	UpdateRule(ctx context.Context, tenantID uuid.UUID, id string, req RuleRequest, userID string) (RuleResponse, error)
	// DeleteRule soft-deletes by default (is_active=false); hard removal
	// only when explicitly requested.
	DeleteRule(ctx context.Context, tenantID uuid.UUID, id string, hard bool, userID string) error
}

type rulebookService struct {
	versions repository.RulebookVersionRepository
	rules    repository.RulebookRuleRepository
	audits   repository.AuditLogRepository
	txm      repository.TransactionManager
}

func NewRulebookService(
	versions repository.RulebookVersionRepository,
	rules repository.RulebookRuleRepository,
	audits repository.AuditLogRepository,
	txm repository.TransactionManager,
) RulebookService {
	return &rulebookService{versions: versions, rules: rules, audits: audits, txm: txm}
}

// --- Implementation ---

func (s *rulebookService) ListVersions(ctx context.Context, tenantID uuid.UUID) ([]VersionResponse, error) {
	versions, err := s.versions.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rulebook versions: %w", err)
	}
	res := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		res = append(res, toVersionResponse(v))
	}
	return res, nil
}

func (s *rulebookService) CreateVersion(ctx context.Context, tenantID uuid.UUID, req CreateVersionRequest, userID string) (VersionResponse, error) {
	effectiveFrom, effectiveTo, err := parseVersionDates(req.EffectiveFrom, req.EffectiveTo)
	if err != nil {
		return VersionResponse{}, err
	}

	existing, err := s.versions.FindByCode(ctx, tenantID, req.Code)
	if err != nil {
		return VersionResponse{}, fmt.Errorf("failed to check version code: %w", err)
	}
	if existing != nil {
		return VersionResponse{}, fmt.Errorf("version with code '%s' already exists", req.Code)
	}

	version := model.RulebookVersion{
		TenantID:      tenantID,
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
	}
	if err := s.versions.Create(ctx, &version); err != nil {
		return VersionResponse{}, fmt.Errorf("failed to create rulebook version: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionCreateRulebookVersion, version.ID.String(), version.Code, req)
	return toVersionResponse(version), nil
}

func (s *rulebookService) ActivateVersion(ctx context.Context, tenantID uuid.UUID, versionID string, userID string) (VersionResponse, error) {
	id, err := uuid.Parse(versionID)
	if err != nil {
		return VersionResponse{}, fmt.Errorf("invalid version id: %w", err)
	}

	version, err := s.versions.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VersionResponse{}, fmt.Errorf("rulebook version not found")
		}
		return VersionResponse{}, fmt.Errorf("failed to fetch rulebook version: %w", err)
	}

	// Deactivate-then-activate must be one atomic operation: no window
	// with zero or two active versions, even under concurrent admin actions.
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.versions.DeactivateAll(txCtx, tenantID); err != nil {
			return err
		}
		return s.versions.SetActive(txCtx, tenantID, id)
	})
	if err != nil {
		return VersionResponse{}, fmt.Errorf("failed to activate rulebook version: %w", err)
	}
	version.IsActive = true

	s.writeAuditLog(ctx, userID, model.ActionActivateRulebookVersion, version.ID.String(), version.Code, nil)
	return toVersionResponse(*version), nil
}

func (s *rulebookService) Init(ctx context.Context, tenantID uuid.UUID, req InitRequest, userID string) (InitSummary, error) {
	code := req.VersionCode
	if code == "" {
		code = fmt.Sprintf("baseline-%d", time.Now().UTC().Year())
	}
	name := req.VersionName
	if name == "" {
		name = fmt.Sprintf("Baseline obligations %d", time.Now().UTC().Year())
	}
	effectiveFrom := time.Date(time.Now().UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if req.EffectiveFrom != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveFrom)
		if err != nil {
			return InitSummary{}, fmt.Errorf("invalid effective_from date format (expected YYYY-MM-DD): %w", err)
		}
		effectiveFrom = parsed
	}

	summary := InitSummary{VersionCode: code}

	version, err := s.versions.FindByCode(ctx, tenantID, code)
	if err != nil {
		return InitSummary{}, fmt.Errorf("failed to look up version: %w", err)
	}
	if version == nil {
		version = &model.RulebookVersion{
			TenantID:      tenantID,
			Code:          code,
			Name:          name,
			Description:   "Seeded baseline obligation rule set",
			EffectiveFrom: effectiveFrom,
		}
		if err := s.versions.Create(ctx, version); err != nil {
			return InitSummary{}, fmt.Errorf("failed to create rulebook version: %w", err)
		}
		summary.VersionCreated = true
	}
	summary.VersionID = version.ID.String()

	if req.ReplaceRules {
		if err := s.rules.DeleteByVersion(ctx, tenantID, version.ID); err != nil {
			return InitSummary{}, fmt.Errorf("failed to clear rules for reseed: %w", err)
		}
		summary.RulesReplaced = true
	}

	for _, seed := range defaultRuleSeeds() {
		existing, err := s.rules.FindByCode(ctx, tenantID, version.ID, seed.Code)
		if err != nil {
			return InitSummary{}, fmt.Errorf("failed to look up rule %s: %w", seed.Code, err)
		}
		if existing == nil {
			rule := seed.toModel(tenantID, version.ID)
			if err := s.rules.Create(ctx, &rule); err != nil {
				return InitSummary{}, fmt.Errorf("failed to seed rule %s: %w", seed.Code, err)
			}
			summary.RulesSeeded++
			continue
		}
		// Re-running init refreshes defaults in place, keyed by code.
		seed.applyTo(existing)
		if err := s.rules.Update(ctx, existing); err != nil {
			return InitSummary{}, fmt.Errorf("failed to update rule %s: %w", seed.Code, err)
		}
		summary.RulesUpdated++
	}

	if req.ActivateVersion {
		err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.versions.DeactivateAll(txCtx, tenantID); err != nil {
				return err
			}
			return s.versions.SetActive(txCtx, tenantID, version.ID)
		})
		if err != nil {
			return InitSummary{}, fmt.Errorf("failed to activate rulebook version: %w", err)
		}
		summary.Activated = true
	}

	s.writeAuditLog(ctx, userID, model.ActionInitRulebook, version.ID.String(), code, summary)
	return summary, nil
}

func (s *rulebookService) ListRules(ctx context.Context, tenantID uuid.UUID, versionID string) ([]RuleResponse, error) {
	id, err := uuid.Parse(versionID)
	if err != nil {
		return nil, fmt.Errorf("invalid version id: %w", err)
	}
	rules, err := s.rules.List(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}
	res := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toRuleResponse(r))
	}
	return res, nil
}

func (s *rulebookService) CreateRule(ctx context.Context, tenantID uuid.UUID, req RuleRequest, userID string) (RuleResponse, error) {
	versionID, err := uuid.Parse(req.VersionID)
	if err != nil {
		return RuleResponse{}, fmt.Errorf("invalid version id: %w", err)
	}
	if err := validateRuleConfigs(req); err != nil {
		return RuleResponse{}, err
	}

	existing, err := s.rules.FindByCode(ctx, tenantID, versionID, req.Code)
	if err != nil {
		return RuleResponse{}, fmt.Errorf("failed to check rule code: %w", err)
	}
	if existing != nil {
		return RuleResponse{}, fmt.Errorf("rule with code '%s' already exists in this version", req.Code)
	}

	rule := model.RulebookRule{
		TenantID:       tenantID,
		VersionID:      versionID,
		Code:           req.Code,
		Title:          req.Title,
		IsActive:       req.IsActive == nil || *req.IsActive,
		SortOrder:      req.SortOrder,
		LegalBasis:     req.LegalBasis,
		MatchCondition: req.MatchCondition,
		Recurrence:     req.Recurrence,
		DueRule:        req.DueRule,
		TaskTemplate:   req.TaskTemplate,
	}
	if err := s.rules.Create(ctx, &rule); err != nil {
		return RuleResponse{}, fmt.Errorf("failed to create rule: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionCreateRulebookRule, rule.ID.String(), rule.Code, req)
	return toRuleResponse(rule), nil
}

func (s *rulebookService) UpdateRule(ctx context.Context, tenantID uuid.UUID, id string, req RuleRequest, userID string) (RuleResponse, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return RuleResponse{}, fmt.Errorf("invalid rule id: %w", err)
	}
	if err := validateRuleConfigs(req); err != nil {
		return RuleResponse{}, err
	}

	rule, err := s.rules.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RuleResponse{}, fmt.Errorf("rule not found")
		}
		return RuleResponse{}, fmt.Errorf("failed to fetch rule: %w", err)
	}

	rule.Title = req.Title
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	rule.SortOrder = req.SortOrder
	rule.LegalBasis = req.LegalBasis
	rule.MatchCondition = req.MatchCondition
	rule.Recurrence = req.Recurrence
	rule.DueRule = req.DueRule
	rule.TaskTemplate = req.TaskTemplate

	if err := s.rules.Update(ctx, rule); err != nil {
		return RuleResponse{}, fmt.Errorf("failed to update rule: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionUpdateRulebookRule, rule.ID.String(), rule.Code, req)
	return toRuleResponse(*rule), nil
}

func (s *rulebookService) DeleteRule(ctx context.Context, tenantID uuid.UUID, id string, hard bool, userID string) error {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid rule id: %w", err)
	}

	rule, err := s.rules.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("rule not found")
		}
		return fmt.Errorf("failed to fetch rule: %w", err)
	}

	if hard {
		if err := s.rules.Delete(ctx, tenantID, ruleID); err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
	} else {
		rule.IsActive = false
		if err := s.rules.Update(ctx, rule); err != nil {
			return fmt.Errorf("failed to deactivate rule: %w", err)
		}
	}

	s.writeAuditLog(ctx, userID, model.ActionDeleteRulebookRule, rule.ID.String(), rule.Code, map[string]bool{"hard": hard})
	return nil
}

// --- Helpers ---

// validateRuleConfigs rejects malformed config families at the store
// boundary so broken shapes never reach a generation run.
func validateRuleConfigs(req RuleRequest) error {
	if err := req.MatchCondition.Validate(); err != nil {
		return fmt.Errorf("invalid match_condition: %w", err)
	}
	if err := req.Recurrence.Validate(); err != nil {
		return fmt.Errorf("invalid recurrence: %w", err)
	}
	if err := req.DueRule.Validate(); err != nil {
		return fmt.Errorf("invalid due_rule: %w", err)
	}
	if err := req.TaskTemplate.Validate(); err != nil {
		return fmt.Errorf("invalid task_template: %w", err)
	}
	return nil
}

func parseVersionDates(fromStr, toStr string) (time.Time, *time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid effective_from date format (expected YYYY-MM-DD): %w", err)
	}
	var to *time.Time
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("invalid effective_to date format (expected YYYY-MM-DD): %w", err)
		}
		to = &t
	}
	return from, to, nil
}

func toVersionResponse(v model.RulebookVersion) VersionResponse {
	res := VersionResponse{
		ID:            v.ID.String(),
		Code:          v.Code,
		Name:          v.Name,
		Description:   v.Description,
		EffectiveFrom: v.EffectiveFrom.Format("2006-01-02"),
		IsActive:      v.IsActive,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
	}
	if v.EffectiveTo != nil {
		s := v.EffectiveTo.Format("2006-01-02")
		res.EffectiveTo = &s
	}
	return res
}

func toRuleResponse(r model.RulebookRule) RuleResponse {
	return RuleResponse{
		ID:             r.ID.String(),
		VersionID:      r.VersionID.String(),
		Code:           r.Code,
		Title:          r.Title,
		IsActive:       r.IsActive,
		SortOrder:      r.SortOrder,
		LegalBasis:     r.LegalBasis,
		MatchCondition: r.MatchCondition,
		Recurrence:     r.Recurrence,
		DueRule:        r.DueRule,
		TaskTemplate:   r.TaskTemplate,
	}
}

func (s *rulebookService) writeAuditLog(ctx context.Context, userID, action, entityID, entityName string, details any) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}
	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			entry.UserID = &parsed
		}
	}

	// Best-effort audit log — don't fail the operation if logging fails
	if err := s.audits.Create(ctx, &entry); err != nil {
		log.Printf("rulebook: failed to write audit log: %v", err)
	}
}
