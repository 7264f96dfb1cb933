package repository

import (
	"context"
	"errors"
	"time"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenerationFilter narrows generation record listings.
type GenerationFilter struct {
	ClientID  *uuid.UUID
	RuleID    *uuid.UUID
	Status    string
	DueBefore *time.Time
}

// TaskGenerationRepository defines the interface for data access of TaskGeneration entities.
// The (tenant, client, rule, period_key) unique index is the idempotence
// mechanism of the whole engine; Insert surfaces conflicts as created=false
// instead of an error so racing writers converge on the same row.
type TaskGenerationRepository interface {
	Find(ctx context.Context, tenantID, clientID, ruleID uuid.UUID, periodKey string) (*model.TaskGeneration, error)
	Insert(ctx context.Context, record *model.TaskGeneration) (created bool, err error)
	Update(ctx context.Context, record *model.TaskGeneration) error
	List(ctx context.Context, tenantID uuid.UUID, filter GenerationFilter, page, limit int) ([]model.TaskGeneration, int64, error)
}

type taskGenerationRepository struct {
	db *gorm.DB
}

// NewTaskGenerationRepository returns a new instance of TaskGenerationRepository
func NewTaskGenerationRepository(db *gorm.DB) TaskGenerationRepository {
	return &taskGenerationRepository{db: db}
}

func (r *taskGenerationRepository) Find(ctx context.Context, tenantID, clientID, ruleID uuid.UUID, periodKey string) (*model.TaskGeneration, error) {
	var record model.TaskGeneration
	err := GetDB(ctx, r.db).First(&record,
		"tenant_id = ? AND client_id = ? AND rule_id = ? AND period_key = ?",
		tenantID, clientID, ruleID, periodKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *taskGenerationRepository) Insert(ctx context.Context, record *model.TaskGeneration) (bool, error) {
	res := GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "client_id"}, {Name: "rule_id"}, {Name: "period_key"},
		},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *taskGenerationRepository) Update(ctx context.Context, record *model.TaskGeneration) error {
	return GetDB(ctx, r.db).Save(record).Error
}

func (r *taskGenerationRepository) List(ctx context.Context, tenantID uuid.UUID, filter GenerationFilter, page, limit int) ([]model.TaskGeneration, int64, error) {
	db := GetDB(ctx, r.db).Model(&model.TaskGeneration{}).Where("tenant_id = ?", tenantID)
	if filter.ClientID != nil {
		db = db.Where("client_id = ?", *filter.ClientID)
	}
	if filter.RuleID != nil {
		db = db.Where("rule_id = ?", *filter.RuleID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.DueBefore != nil {
		db = db.Where("scheduled_due_date < ?", *filter.DueBefore)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.TaskGeneration
	offset := (page - 1) * limit
	if err := db.Order("scheduled_due_date asc").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
