package repository

import (
	"context"
	"errors"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleOverrideRepository defines the interface for data access of RuleOverride entities
type RuleOverrideRepository interface {
	// Upsert creates or replaces the override for (tenant, client, rule).
	Upsert(ctx context.Context, override *model.RuleOverride) error
	Find(ctx context.Context, tenantID, clientID, ruleID uuid.UUID) (*model.RuleOverride, error)
	ListByClient(ctx context.Context, tenantID, clientID uuid.UUID) ([]model.RuleOverride, error)
}

type ruleOverrideRepository struct {
	db *gorm.DB
}

// NewRuleOverrideRepository returns a new instance of RuleOverrideRepository
func NewRuleOverrideRepository(db *gorm.DB) RuleOverrideRepository {
	return &ruleOverrideRepository{db: db}
}

func (r *ruleOverrideRepository) Upsert(ctx context.Context, override *model.RuleOverride) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "client_id"}, {Name: "rule_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_enabled", "due_rule", "task_template", "note", "updated_at",
		}),
	}).Create(override).Error
}

func (r *ruleOverrideRepository) Find(ctx context.Context, tenantID, clientID, ruleID uuid.UUID) (*model.RuleOverride, error) {
	var override model.RuleOverride
	err := GetDB(ctx, r.db).
		First(&override, "tenant_id = ? AND client_id = ? AND rule_id = ?", tenantID, clientID, ruleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &override, nil
}

func (r *ruleOverrideRepository) ListByClient(ctx context.Context, tenantID, clientID uuid.UUID) ([]model.RuleOverride, error) {
	var overrides []model.RuleOverride
	if err := GetDB(ctx, r.db).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Find(&overrides).Error; err != nil {
		return nil, err
	}
	return overrides, nil
}
