package model

import (
	"time"

	"github.com/google/uuid"
)

// Task status enum constants
const (
	TaskPending   = "pending"
	TaskInWork    = "in_work"
	TaskDone      = "done"
	TaskCancelled = "cancelled"
)

// TaskSourceRulebook marks tasks emitted by the generation engine.
const TaskSourceRulebook = "rulebook"

// Task is a work item on an accountant's board. The engine only ever
// creates tasks; tracking and completion belong to the task screens.
type Task struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`

	Title         string    `gorm:"type:varchar(500);not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	TaskType      string    `gorm:"type:varchar(50);not null;index" json:"task_type"`
	Priority      string    `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`
	DueDate       time.Time `gorm:"type:date;not null;index" json:"due_date"`
	ProofRequired bool      `gorm:"not null;default:false" json:"proof_required"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Source       string     `gorm:"type:varchar(20);not null;default:'manual';index" json:"source"`
	SourceRuleID *uuid.UUID `gorm:"type:uuid;index" json:"source_rule_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
