package model

import (
	"time"

	"taxops/internal/rulebook"

	"github.com/google/uuid"
)

// RulebookVersion is a named, dated rule set of a tenant. At most one
// version per tenant is active at any time; activation deactivates the
// rest in the same transaction.
type RulebookVersion struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_version_tenant_code" json:"tenant_id"`
	Code          string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_version_tenant_code" json:"code"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	Description   string     `gorm:"type:text" json:"description"`
	EffectiveFrom time.Time  `gorm:"type:date;not null" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"type:date" json:"effective_to"`
	IsActive      bool       `gorm:"not null;default:false;index" json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RulebookRule is one obligation definition inside a version. The config
// families live in jsonb columns but are validated into closed engine
// types before anything is written.
type RulebookRule struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_rule_tenant_version_code" json:"tenant_id"`
	VersionID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_rule_tenant_version_code" json:"version_id"`
	Code      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_rule_tenant_version_code" json:"code"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`

	LegalBasis     []string               `gorm:"type:jsonb;serializer:json" json:"legal_basis"`
	MatchCondition *rulebook.Condition    `gorm:"type:jsonb;serializer:json" json:"match_condition"` // nil = applies to all clients
	Recurrence     rulebook.Recurrence    `gorm:"type:jsonb;serializer:json;not null" json:"recurrence"`
	DueRule        rulebook.DueRule       `gorm:"type:jsonb;serializer:json;not null" json:"due_rule"`
	TaskTemplate   rulebook.TaskTemplate  `gorm:"type:jsonb;serializer:json;not null" json:"task_template"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleOverride is a per-client exception to one rule. A disabled override
// suppresses the rule for that client regardless of its match condition.
type RuleOverride struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_override_tenant_client_rule" json:"tenant_id"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_override_tenant_client_rule" json:"client_id"`
	RuleID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_override_tenant_client_rule" json:"rule_id"`

	IsEnabled    bool                   `gorm:"not null;default:true" json:"is_enabled"`
	DueRule      *rulebook.DueRule      `gorm:"type:jsonb;serializer:json" json:"due_rule"`
	TaskTemplate *rulebook.TaskTemplate `gorm:"type:jsonb;serializer:json" json:"task_template"`
	Note         string                 `gorm:"type:text" json:"note"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
