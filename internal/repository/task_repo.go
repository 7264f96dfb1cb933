package repository

import (
	"context"

	"taxops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskRepository defines the interface for data access of Task entities.
// The engine only creates tasks; everything else about them belongs to the
// task screens outside this service.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Task, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository returns a new instance of TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return GetDB(ctx, r.db).Create(task).Error
}

func (r *taskRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := GetDB(ctx, r.db).First(&task, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}
