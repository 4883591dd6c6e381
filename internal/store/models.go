package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	// Handle empty or null JSON
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// ScheduledCall represents one call to be placed or already placed.
type ScheduledCall struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PhoneNumber      string     `db:"phone_number" json:"phone_number"`
	ScheduledTime    time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Status           string     `db:"status" json:"status"`
	CallSID          *string    `db:"call_sid" json:"call_sid,omitempty"`
	VoiceURL         string     `db:"voice_url" json:"voice_url"`
	CallbackURL      string     `db:"callback_url" json:"callback_url"`
	ErrorMessage     *string    `db:"error_message" json:"error_message,omitempty"`
	TwilioStatus     *string    `db:"twilio_status" json:"twilio_status,omitempty"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	LastStatusUpdate *time.Time `db:"last_status_update" json:"last_status_update,omitempty"`
	Metadata         JSONB      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
