package repository

import (
	"context"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantRepository defines the interface for data access of Tenant entities
type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetByCode(ctx context.Context, code string) (*model.Tenant, error)
	ListActive(ctx context.Context) ([]model.Tenant, error)
}

type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository returns a new instance of TenantRepository
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := GetDB(ctx, r.db).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) GetByCode(ctx context.Context, code string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := GetDB(ctx, r.db).First(&tenant, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) ListActive(ctx context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("code asc").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
