package models

import "gorm.io/gorm"

// Organization is the tenancy boundary. Every domain row carries an OrgID and
// every query filters by it.
type Organization struct {
	gorm.Model
	Name  string `gorm:"not null" json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`

	// Relations
	Users []User `gorm:"foreignKey:OrgID" json:"users,omitempty"`
}

// User represents an agent or manager inside an organization
type User struct {
	gorm.Model
	OrgID uint `gorm:"not null;index" json:"org_id"`

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:'agent'" json:"role"` // owner, manager, agent
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrgID" json:"-"`
}
