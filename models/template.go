package models

import "gorm.io/gorm"

// Outbound channels
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// MessageTemplate is a channel-tagged message body referenced by sequence
// steps. Subject is only meaningful for email templates. Variables holds the
// placeholder names derived from the body/subject at save time.
type MessageTemplate struct {
	gorm.Model
	OrgID uint `gorm:"not null;index" json:"org_id"`

	Name    string  `gorm:"not null" json:"name"`
	Channel string  `gorm:"not null" json:"channel"` // whatsapp, email
	Subject *string `json:"subject,omitempty"`
	Body    string  `gorm:"type:text;not null" json:"body"`

	Variables []string `gorm:"type:jsonb;serializer:json" json:"variables"`

	CreatedByID uint `gorm:"index" json:"created_by_id"`
}
