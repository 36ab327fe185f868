package models

import (
	"time"

	"gorm.io/gorm"
)

// ChannelProvider holds an organization's outbound credentials for one
// channel. Secrets (SMTPPassword, IMAPPassword, WhatsAppToken) are stored
// encrypted; at most one active provider per (org, channel).
type ChannelProvider struct {
	gorm.Model
	OrgID uint `gorm:"not null;index;uniqueIndex:idx_providers_one_active,where:is_active = true" json:"org_id"`

	Channel  string `gorm:"not null;uniqueIndex:idx_providers_one_active,where:is_active = true" json:"channel"` // whatsapp, email
	IsActive bool   `gorm:"default:false" json:"is_active"`

	// Email (SMTP out, IMAP in for reply detection)
	FromName     string `json:"from_name"`
	FromEmail    string `json:"from_email"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"` // encrypted at rest

	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"-"` // encrypted at rest
	IMAPEncryption string `json:"imap_encryption"` // ssl, starttls, none
	IMAPMailbox    string `json:"imap_mailbox"`

	// WhatsApp business API
	WhatsAppBaseURL string `json:"whatsapp_base_url"`
	WhatsAppPhoneID string `json:"whatsapp_phone_id"`
	WhatsAppToken   string `json:"-"` // encrypted at rest

	LastError    string     `json:"last_error,omitempty"`
	LastTestedAt *time.Time `json:"last_tested_at,omitempty"`
}
