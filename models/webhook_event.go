package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent records every provider event that has been applied. The unique
// (provider, event_id) pair is what makes redelivered events a no-op.
type WebhookEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Provider    string         `gorm:"not null;uniqueIndex:idx_webhook_provider_event" json:"provider"`
	EventID     string         `gorm:"not null;uniqueIndex:idx_webhook_provider_event" json:"event_id"`
	EventType   string         `gorm:"not null;index" json:"event_type"`
	Payload     datatypes.JSON `json:"payload"`
	ProcessedAt time.Time      `gorm:"not null" json:"processed_at"`
}

// TableName specifies the table name for the WebhookEvent model
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
