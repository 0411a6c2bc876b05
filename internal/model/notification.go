package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types mirror the dashboard's toast categories.
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
	TypeSystem  = "system"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is one message directed at a user. Only Read/ReadAt mutate
// after creation; everything else is immutable.
type Notification struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Message        string         `gorm:"type:text;not null" json:"message"`
	Type           string         `gorm:"type:varchar(20);not null" json:"type"`
	Priority       string         `gorm:"type:varchar(20)" json:"priority,omitempty"`
	Category       string         `gorm:"type:varchar(50);index" json:"category,omitempty"`
	Read           bool           `gorm:"default:false" json:"read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	Link           string         `gorm:"type:varchar(512)" json:"link,omitempty"`
	Persistent     bool           `gorm:"default:false" json:"persistent"`
	AutoClose      bool           `gorm:"default:false" json:"auto_close"`
	AutoCloseDelay int            `json:"auto_close_delay,omitempty"`
	Metadata       map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

func ValidType(t string) bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeSystem:
		return true
	}
	return false
}

// ValidPriority accepts the empty string: priority is optional.
func ValidPriority(p string) bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
