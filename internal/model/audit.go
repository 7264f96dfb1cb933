package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateRulebookVersion   = "CREATE_RULEBOOK_VERSION"
	ActionActivateRulebookVersion = "ACTIVATE_RULEBOOK_VERSION"
	ActionInitRulebook            = "INIT_RULEBOOK"
	ActionCreateRulebookRule      = "CREATE_RULEBOOK_RULE"
	ActionUpdateRulebookRule      = "UPDATE_RULEBOOK_RULE"
	ActionDeleteRulebookRule      = "DELETE_RULEBOOK_RULE"

	// Client administration actions
	ActionCreateClient       = "CREATE_CLIENT"
	ActionUpdateClient       = "UPDATE_CLIENT"
	ActionUpsertRuleOverride = "UPSERT_RULE_OVERRIDE"

	ActionRunGeneration = "RUN_GENERATION"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if scheduled trigger
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
