package wallet
// internal/domain/wallet/entity.go

import (
	"encoding/json"
	"time"
)

type Platform string
type QueueStatus string

const (
	PlatformApple  Platform = "apple"
	PlatformGoogle Platform = "google"
	PlatformPWA    Platform = "pwa"

	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSuccess    QueueStatus = "success"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusDead       QueueStatus = "dead"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformApple, PlatformGoogle, PlatformPWA:
		return true
	}
	return false
}

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusSuccess, QueueStatusFailed, QueueStatusDead:
		return true
	}
	return false
}

// Terminal reports whether a queue item has left the pending/processing states.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusSuccess || s == QueueStatusFailed || s == QueueStatusDead
}

// Pass is one externally issued pass for a customer card on one platform.
type Pass struct {
	ID             string   `json:"id" db:"id"`
	CustomerCardID string   `json:"customer_card_id" db:"customer_card_id"`
	Platform       Platform `json:"platform" db:"platform"`
	// PassTypeID is the Apple pass type identifier or the Google class id.
	PassTypeID   string    `json:"pass_type_id" db:"pass_type_id"`
	SerialNumber string    `json:"serial_number" db:"serial_number"`
	UpdateTag    int64     `json:"update_tag" db:"update_tag"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Device is an Apple device that registered through the PassKit web service.
type Device struct {
	ID                      string    `json:"id" db:"id"`
	DeviceLibraryIdentifier string    `json:"device_library_identifier" db:"device_library_identifier"`
	PushToken               string    `json:"push_token" db:"push_token"`
	Platform                Platform  `json:"platform" db:"platform"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

type Registration struct {
	DeviceID  string    `json:"device_id" db:"device_id"`
	PassID    string    `json:"pass_id" db:"pass_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// QueueItem is one push-update job for a single pass on a single platform.
type QueueItem struct {
	ID           string          `json:"id" db:"id"`
	PassID       string          `json:"pass_id" db:"pass_id"`
	Platform     Platform        `json:"platform" db:"platform"`
	Payload      json.RawMessage `json:"payload,omitempty" db:"payload"`
	Status       QueueStatus     `json:"status" db:"status"`
	Attempt      int             `json:"attempt" db:"attempt"`
	MaxAttempts  int             `json:"max_attempts" db:"max_attempts"`
	ParentID     *string         `json:"parent_id,omitempty" db:"parent_id"`
	ScheduledAt  time.Time       `json:"scheduled_at" db:"scheduled_at"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// SerialTag pairs a serial number with the tag it was last updated at.
type SerialTag struct {
	SerialNumber string `json:"serial_number"`
	UpdateTag    int64  `json:"update_tag"`
}
