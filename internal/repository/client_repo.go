package repository

import (
	"context"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientRepository defines the interface for data access of Client entities
type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	Update(ctx context.Context, client *model.Client) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Client, error)
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.Client, int64, error)
	// ListActive returns all active clients of the tenant, or just the one
	// requested when clientID is set.
	ListActive(ctx context.Context, tenantID uuid.UUID, clientID *uuid.UUID) ([]model.Client, error)
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository returns a new instance of ClientRepository
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	return GetDB(ctx, r.db).Create(client).Error
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	return GetDB(ctx, r.db).Save(client).Error
}

func (r *clientRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).First(&client, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) List(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.Client, int64, error) {
	var clients []model.Client
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Client{}).Where("tenant_id = ?", tenantID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("name asc").Offset(offset).Limit(limit).Find(&clients).Error; err != nil {
		return nil, 0, err
	}

	return clients, total, nil
}

func (r *clientRepository) ListActive(ctx context.Context, tenantID uuid.UUID, clientID *uuid.UUID) ([]model.Client, error) {
	query := GetDB(ctx, r.db).
		Where("tenant_id = ? AND status = ?", tenantID, model.ClientStatusActive)
	if clientID != nil {
		query = query.Where("id = ?", *clientID)
	}

	var clients []model.Client
	if err := query.Order("name asc").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}
