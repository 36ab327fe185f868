package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Sequence statuses
const (
	SequenceStatusDraft    = "draft"
	SequenceStatusActive   = "active"
	SequenceStatusPaused   = "paused"
	SequenceStatusArchived = "archived"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCanceled  = "canceled"
	RunStatusCompleted = "completed"
)

// Run step statuses
const (
	RunStepStatusPending   = "pending"
	RunStepStatusScheduled = "scheduled"
	RunStepStatusSent      = "sent"
	RunStepStatusCanceled  = "canceled"
	RunStepStatusFailed    = "failed"
)

// Sequence is a reusable outbound workflow definition
type Sequence struct {
	gorm.Model
	OrgID uint `gorm:"not null;index" json:"org_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, paused, archived

	// Settings
	DefaultStartDelayMinutes int  `gorm:"default:0" json:"default_start_delay_minutes"`
	StopOnReply              bool `gorm:"default:true" json:"stop_on_reply"`

	CreatedByID uint `gorm:"index" json:"created_by_id"`
	UpdatedByID uint `gorm:"index" json:"updated_by_id"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep is one scheduled action within a sequence. Steps are always
// replaced as a whole set, never mutated individually.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`
	TemplateID uint `gorm:"not null;index" json:"template_id"`

	OrderIndex   int    `gorm:"not null" json:"order_index"`
	Channel      string `gorm:"not null" json:"channel"` // whatsapp, email
	DelayMinutes int    `gorm:"not null" json:"delay_minutes"`

	// Opaque extension payloads, passed through untouched
	Conditions json.RawMessage `gorm:"type:jsonb" json:"conditions,omitempty"`
	CreateTask json.RawMessage `gorm:"type:jsonb" json:"create_task,omitempty"`
	Notify     json.RawMessage `gorm:"type:jsonb" json:"notify,omitempty"`

	// Relations
	Template MessageTemplate `json:"-"`
}

// SequenceRun is one execution of a sequence against one lead. The partial
// unique index keeps at most one running run per (sequence, lead).
type SequenceRun struct {
	gorm.Model
	OrgID      uint `gorm:"not null;index" json:"org_id"`
	SequenceID uint `gorm:"not null;index;uniqueIndex:idx_runs_one_active,where:status = 'running'" json:"sequence_id"`
	LeadID     uint `gorm:"not null;index;uniqueIndex:idx_runs_one_active,where:status = 'running'" json:"lead_id"`

	Status    string     `gorm:"default:'running';index" json:"status"` // running, canceled, completed
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at"`

	// Cursor into the sequence's step list
	NextStepIndex int        `gorm:"default:0" json:"next_step_index"`
	NextStepAt    *time.Time `gorm:"index" json:"next_step_at"`

	CreatedByID uint `gorm:"index" json:"created_by_id"`

	// Relations
	Sequence Sequence          `json:"sequence"`
	Lead     Lead              `json:"-"`
	Steps    []SequenceRunStep `gorm:"foreignKey:RunID" json:"run_steps,omitempty"`
}

// SequenceRunStep is the materialized record of one step firing (or being
// cancelled) within a run
type SequenceRunStep struct {
	gorm.Model
	RunID      uint `gorm:"not null;index" json:"run_id"`
	TemplateID uint `gorm:"index" json:"template_id"`

	OrderIndex int    `gorm:"not null" json:"order_index"`
	Channel    string `gorm:"not null" json:"channel"`
	Status     string `gorm:"default:'pending'" json:"status"` // pending, scheduled, sent, canceled, failed

	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	MessageID   string     `json:"message_id"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`

	// Relations
	Run SequenceRun `json:"-"`
}
