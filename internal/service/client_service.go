package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"taxops/internal/model"
	"taxops/internal/repository"
	"taxops/internal/rulebook"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type ClientRequest struct {
	Name      string `json:"name" binding:"required"`
	LegalForm string `json:"legal_form" binding:"required,oneof=company entrepreneur self_employed"`
	Status    string `json:"status" binding:"omitempty,oneof=active paused archived"`

	TaxSystem     string   `json:"tax_system"`
	IsVATPayer    *bool    `json:"is_vat_payer"`
	EmployeeCount *int     `json:"employee_count"`
	TaxTags       []string `json:"tax_tags"`

	Timezone          string `json:"timezone"`
	PayrollFrequency  string `json:"payroll_frequency" binding:"omitempty,oneof=monthly semi_monthly"`
	PayrollAdvanceDay int    `json:"payroll_advance_day" binding:"omitempty,min=1,max=31"`
	PayrollFinalDay   int    `json:"payroll_final_day" binding:"omitempty,min=1,max=31"`
}

type OverrideRequest struct {
	IsEnabled    *bool                  `json:"is_enabled" binding:"required"`
	DueRule      *rulebook.DueRule      `json:"due_rule"`
	TaskTemplate *rulebook.TaskTemplate `json:"task_template"`
	Note         string                 `json:"note"`
}

// --- Interface ---

type ClientService interface {
	ListClients(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.Client, int64, error)
	CreateClient(ctx context.Context, tenantID uuid.UUID, req ClientRequest, userID string) (model.Client, error)
	UpdateClient(ctx context.Context, tenantID uuid.UUID, id string, req ClientRequest, userID string) (model.Client, error)
	ListOverrides(ctx context.Context, tenantID uuid.UUID, clientID string) ([]model.RuleOverride, error)
	// UpsertOverride installs or replaces the per-client exception for one
	// rule; a disabled override suppresses the rule for that client.
	UpsertOverride(ctx context.Context, tenantID uuid.UUID, clientID, ruleID string, req OverrideRequest, userID string) (model.RuleOverride, error)
}

type clientService struct {
	clients   repository.ClientRepository
	rules     repository.RulebookRuleRepository
	overrides repository.RuleOverrideRepository
	audits    repository.AuditLogRepository
}

func NewClientService(
	clients repository.ClientRepository,
	rules repository.RulebookRuleRepository,
	overrides repository.RuleOverrideRepository,
	audits repository.AuditLogRepository,
) ClientService {
	return &clientService{clients: clients, rules: rules, overrides: overrides, audits: audits}
}

// --- Implementation ---

func (s *clientService) ListClients(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.Client, int64, error) {
	return s.clients.List(ctx, tenantID, page, limit)
}

func (s *clientService) CreateClient(ctx context.Context, tenantID uuid.UUID, req ClientRequest, userID string) (model.Client, error) {
	client := model.Client{
		TenantID:          tenantID,
		Name:              req.Name,
		LegalForm:         req.LegalForm,
		Status:            req.Status,
		TaxSystem:         req.TaxSystem,
		IsVATPayer:        req.IsVATPayer,
		EmployeeCount:     req.EmployeeCount,
		TaxTags:           req.TaxTags,
		Timezone:          req.Timezone,
		PayrollFrequency:  req.PayrollFrequency,
		PayrollAdvanceDay: req.PayrollAdvanceDay,
		PayrollFinalDay:   req.PayrollFinalDay,
	}
	if client.Status == "" {
		client.Status = model.ClientStatusActive
	}
	if client.Timezone == "" {
		client.Timezone = "UTC"
	}

	if err := s.clients.Create(ctx, &client); err != nil {
		return model.Client{}, fmt.Errorf("failed to create client: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionCreateClient, client.ID.String(), client.Name, req)
	return client, nil
}

func (s *clientService) UpdateClient(ctx context.Context, tenantID uuid.UUID, id string, req ClientRequest, userID string) (model.Client, error) {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return model.Client{}, fmt.Errorf("invalid client id: %w", err)
	}

	client, err := s.clients.FindByID(ctx, tenantID, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Client{}, fmt.Errorf("client not found")
		}
		return model.Client{}, fmt.Errorf("failed to fetch client: %w", err)
	}

	client.Name = req.Name
	client.LegalForm = req.LegalForm
	if req.Status != "" {
		client.Status = req.Status
	}
	client.TaxSystem = req.TaxSystem
	client.IsVATPayer = req.IsVATPayer
	client.EmployeeCount = req.EmployeeCount
	client.TaxTags = req.TaxTags
	if req.Timezone != "" {
		client.Timezone = req.Timezone
	}
	client.PayrollFrequency = req.PayrollFrequency
	client.PayrollAdvanceDay = req.PayrollAdvanceDay
	client.PayrollFinalDay = req.PayrollFinalDay

	if err := s.clients.Update(ctx, client); err != nil {
		return model.Client{}, fmt.Errorf("failed to update client: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionUpdateClient, client.ID.String(), client.Name, req)
	return *client, nil
}

func (s *clientService) ListOverrides(ctx context.Context, tenantID uuid.UUID, clientID string) ([]model.RuleOverride, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client id: %w", err)
	}
	return s.overrides.ListByClient(ctx, tenantID, id)
}

func (s *clientService) UpsertOverride(ctx context.Context, tenantID uuid.UUID, clientID, ruleID string, req OverrideRequest, userID string) (model.RuleOverride, error) {
	cID, err := uuid.Parse(clientID)
	if err != nil {
		return model.RuleOverride{}, fmt.Errorf("invalid client id: %w", err)
	}
	rID, err := uuid.Parse(ruleID)
	if err != nil {
		return model.RuleOverride{}, fmt.Errorf("invalid rule id: %w", err)
	}

	// The override must point at a real client and rule of this tenant.
	if _, err := s.clients.FindByID(ctx, tenantID, cID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RuleOverride{}, fmt.Errorf("client not found")
		}
		return model.RuleOverride{}, fmt.Errorf("failed to fetch client: %w", err)
	}
	if _, err := s.rules.FindByID(ctx, tenantID, rID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RuleOverride{}, fmt.Errorf("rule not found")
		}
		return model.RuleOverride{}, fmt.Errorf("failed to fetch rule: %w", err)
	}

	if req.DueRule != nil {
		if err := req.DueRule.Validate(); err != nil {
			return model.RuleOverride{}, fmt.Errorf("invalid due_rule override: %w", err)
		}
	}
	if req.TaskTemplate != nil {
		if err := req.TaskTemplate.Validate(); err != nil {
			return model.RuleOverride{}, fmt.Errorf("invalid task_template override: %w", err)
		}
	}

	override := model.RuleOverride{
		TenantID:     tenantID,
		ClientID:     cID,
		RuleID:       rID,
		IsEnabled:    *req.IsEnabled,
		DueRule:      req.DueRule,
		TaskTemplate: req.TaskTemplate,
		Note:         req.Note,
	}
	if err := s.overrides.Upsert(ctx, &override); err != nil {
		return model.RuleOverride{}, fmt.Errorf("failed to save override: %w", err)
	}

	s.writeAuditLog(ctx, userID, model.ActionUpsertRuleOverride, override.ID.String(), clientID+"/"+ruleID, req)
	return override, nil
}

func (s *clientService) writeAuditLog(ctx context.Context, userID, action, entityID, entityName string, details any) {
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
		log.Printf("clients: failed to write audit log: %v", err)
	}
}
