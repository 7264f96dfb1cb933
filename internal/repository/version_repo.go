package repository

import (
	"context"
	"errors"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RulebookVersionRepository defines the interface for data access of RulebookVersion entities
type RulebookVersionRepository interface {
	Create(ctx context.Context, version *model.RulebookVersion) error
	Update(ctx context.Context, version *model.RulebookVersion) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.RulebookVersion, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*model.RulebookVersion, error)
	// FindActive returns the tenant's single active version, or nil when the
	// tenant has none. Callers treat that as a reportable condition, not an
	// error.
	FindActive(ctx context.Context, tenantID uuid.UUID) (*model.RulebookVersion, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]model.RulebookVersion, error)
	// DeactivateAll and SetActive are the two halves of activation; the
	// service runs them inside one transaction so there is never a window
	// with zero or two active versions.
	DeactivateAll(ctx context.Context, tenantID uuid.UUID) error
	SetActive(ctx context.Context, tenantID, id uuid.UUID) error
}

type rulebookVersionRepository struct {
	db *gorm.DB
}

// NewRulebookVersionRepository returns a new instance of RulebookVersionRepository
func NewRulebookVersionRepository(db *gorm.DB) RulebookVersionRepository {
	return &rulebookVersionRepository{db: db}
}

func (r *rulebookVersionRepository) Create(ctx context.Context, version *model.RulebookVersion) error {
	return GetDB(ctx, r.db).Create(version).Error
}

func (r *rulebookVersionRepository) Update(ctx context.Context, version *model.RulebookVersion) error {
	return GetDB(ctx, r.db).Save(version).Error
}

func (r *rulebookVersionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.RulebookVersion, error) {
	var version model.RulebookVersion
	if err := GetDB(ctx, r.db).First(&version, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *rulebookVersionRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*model.RulebookVersion, error) {
	var version model.RulebookVersion
	err := GetDB(ctx, r.db).First(&version, "tenant_id = ? AND code = ?", tenantID, code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *rulebookVersionRepository) FindActive(ctx context.Context, tenantID uuid.UUID) (*model.RulebookVersion, error) {
	var version model.RulebookVersion
	err := GetDB(ctx, r.db).First(&version, "tenant_id = ? AND is_active = ?", tenantID, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *rulebookVersionRepository) List(ctx context.Context, tenantID uuid.UUID) ([]model.RulebookVersion, error) {
	var versions []model.RulebookVersion
	if err := GetDB(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		Order("effective_from desc").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *rulebookVersionRepository) DeactivateAll(ctx context.Context, tenantID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.RulebookVersion{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Update("is_active", false).Error
}

func (r *rulebookVersionRepository) SetActive(ctx context.Context, tenantID, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.RulebookVersion{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("is_active", true).Error
}
