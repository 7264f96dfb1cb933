package repository

import (
	"context"
	"errors"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RulebookRuleRepository defines the interface for data access of RulebookRule entities
type RulebookRuleRepository interface {
	Create(ctx context.Context, rule *model.RulebookRule) error
	Update(ctx context.Context, rule *model.RulebookRule) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	DeleteByVersion(ctx context.Context, tenantID, versionID uuid.UUID) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.RulebookRule, error)
	FindByCode(ctx context.Context, tenantID, versionID uuid.UUID, code string) (*model.RulebookRule, error)
	List(ctx context.Context, tenantID, versionID uuid.UUID) ([]model.RulebookRule, error)
	// ListActive returns the active rules of a version in ascending
	// sort_order, which is the order the orchestrator evaluates them in.
	ListActive(ctx context.Context, tenantID, versionID uuid.UUID) ([]model.RulebookRule, error)
}

type rulebookRuleRepository struct {
	db *gorm.DB
}

// NewRulebookRuleRepository returns a new instance of RulebookRuleRepository
func NewRulebookRuleRepository(db *gorm.DB) RulebookRuleRepository {
	return &rulebookRuleRepository{db: db}
}

func (r *rulebookRuleRepository) Create(ctx context.Context, rule *model.RulebookRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *rulebookRuleRepository) Update(ctx context.Context, rule *model.RulebookRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *rulebookRuleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&model.RulebookRule{}).Error
}

func (r *rulebookRuleRepository) DeleteByVersion(ctx context.Context, tenantID, versionID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("tenant_id = ? AND version_id = ?", tenantID, versionID).
		Delete(&model.RulebookRule{}).Error
}

func (r *rulebookRuleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.RulebookRule, error) {
	var rule model.RulebookRule
	if err := GetDB(ctx, r.db).First(&rule, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *rulebookRuleRepository) FindByCode(ctx context.Context, tenantID, versionID uuid.UUID, code string) (*model.RulebookRule, error) {
	var rule model.RulebookRule
	err := GetDB(ctx, r.db).
		First(&rule, "tenant_id = ? AND version_id = ? AND code = ?", tenantID, versionID, code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *rulebookRuleRepository) List(ctx context.Context, tenantID, versionID uuid.UUID) ([]model.RulebookRule, error) {
	var rules []model.RulebookRule
	if err := GetDB(ctx, r.db).
		Where("tenant_id = ? AND version_id = ?", tenantID, versionID).
		Order("sort_order asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *rulebookRuleRepository) ListActive(ctx context.Context, tenantID, versionID uuid.UUID) ([]model.RulebookRule, error) {
	var rules []model.RulebookRule
	if err := GetDB(ctx, r.db).
		Where("tenant_id = ? AND version_id = ? AND is_active = ?", tenantID, versionID, true).
		Order("sort_order asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
