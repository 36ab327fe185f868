package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a prospective buyer or renter tracked by an organization
type Lead struct {
	gorm.Model
	OrgID   uint  `gorm:"not null;index" json:"org_id"`
	OwnerID *uint `gorm:"index" json:"owner_id"` // assigned agent

	FullName string `gorm:"not null" json:"full_name"`
	Phone    string `gorm:"index" json:"phone"`
	Email    string `gorm:"index" json:"email"`
	Wilaya   string `json:"wilaya"`
	Commune  string `json:"commune"`

	// Search criteria
	BudgetMin    *int64 `json:"budget_min"`
	BudgetMax    *int64 `json:"budget_max"`
	PropertyType string `json:"property_type"` // apartment, villa, land, commercial

	// Status
	Status string `gorm:"default:'new'" json:"status"` // new, contacted, qualified, closed, lost
	Source string `json:"source"`                      // manual, import, website, referral

	LastContact *time.Time `json:"last_contact"`

	// Relations
	Owner      *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Activities []LeadActivity `gorm:"foreignKey:LeadID" json:"activities,omitempty"`
}

// LeadActivity is the audit trail for a lead. Rows are written best-effort by
// the activity recorder; they never gate the operation that produced them.
type LeadActivity struct {
	gorm.Model
	OrgID  uint `gorm:"not null;index" json:"org_id"`
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	ActivityType string    `gorm:"not null" json:"activity_type"` // sequence_started, sequence_stopped, message_sent, replied
	ActivityAt   time.Time `gorm:"not null" json:"activity_at"`
	Details      string    `gorm:"type:text" json:"details"`

	// Relations
	Lead Lead `json:"-"`
}
