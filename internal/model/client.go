package model

import (
	"time"

	"github.com/google/uuid"
)

// Client status enum constants
const (
	ClientStatusActive   = "active"
	ClientStatusPaused   = "paused"
	ClientStatusArchived = "archived"
)

// Legal form enum constants
const (
	LegalFormCompany      = "company"
	LegalFormEntrepreneur = "entrepreneur"
	LegalFormSelfEmployed = "self_employed"
)

// Payroll frequency enum constants
const (
	PayrollMonthly     = "monthly"
	PayrollSemiMonthly = "semi_monthly"
)

// Client is a serviced business of a tenant. The rulebook engine never
// reads this row directly; it projects it into a runtime profile at
// generation time.
type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	LegalForm string    `gorm:"type:varchar(30);not null" json:"legal_form"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	TaxSystem     string   `gorm:"type:varchar(30)" json:"tax_system"`
	IsVATPayer    *bool    `json:"is_vat_payer"`
	EmployeeCount *int     `json:"employee_count"`
	TaxTags       []string `gorm:"type:jsonb;serializer:json" json:"tax_tags"`

	Timezone          string `gorm:"type:varchar(64);default:'UTC'" json:"timezone"`
	PayrollFrequency  string `gorm:"type:varchar(20)" json:"payroll_frequency"`
	PayrollAdvanceDay int    `gorm:"default:0" json:"payroll_advance_day"` // 0 = not configured
	PayrollFinalDay   int    `gorm:"default:0" json:"payroll_final_day"`   // 0 = not configured

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
