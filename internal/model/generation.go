package model

import (
	"time"

	"github.com/google/uuid"
)

// Generation record status enum constants
const (
	GenerationPending   = "pending"
	GenerationGenerated = "generated"
	GenerationSkipped   = "skipped"
	GenerationError     = "error"
)

// TaskGeneration is the idempotence ledger: one row per
// (tenant, client, rule, period). The unique index on that tuple is the
// mechanism that makes repeated and concurrent runs create each obligation
// at most once. A rejected duplicate insert is an expected outcome, not
// an error.
type TaskGeneration struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_generation_unit" json:"tenant_id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_generation_unit" json:"client_id"`
	RuleID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_generation_unit" json:"rule_id"`

	PeriodKey   string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_generation_unit" json:"period_key"`
	PeriodStart time.Time `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null" json:"period_end"`

	ScheduledDueDate time.Time  `gorm:"type:date;not null;index" json:"scheduled_due_date"`
	GeneratedTaskID  *uuid.UUID `gorm:"type:uuid" json:"generated_task_id"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`

	// Free-form diagnostics: rule code, matched condition snapshot, run flags.
	GenerationContext map[string]any `gorm:"type:jsonb;serializer:json" json:"generation_context"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
