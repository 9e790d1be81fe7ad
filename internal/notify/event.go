package notify

import "time"

type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
)

// Event is a durable notification entry. Emails are sent from here, after
// the subscription write committed, never from inside a webhook handler.
//
// The unique (provider_event_id, email_type) pair is what makes provider
// event replays send each email at most once.
type Event struct {
	ID              int64  `gorm:"primaryKey"`
	ProviderEventID string `gorm:"type:varchar(255);not null;uniqueIndex:idx_notification_dedup,priority:1"`
	EmailType       string `gorm:"type:varchar(50);not null;uniqueIndex:idx_notification_dedup,priority:2"`
	Recipient       string `gorm:"type:varchar(255);not null"`
	Payload         string `gorm:"type:jsonb"`
	Status          string `gorm:"type:varchar(50);not null"`
	Attempts        int    `gorm:"not null;default:0"`
	LastError       string `gorm:"type:text"`
	LockedAt        *time.Time
	NextAttemptAt   *time.Time
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Event) TableName() string {
	return "notification_events"
}
