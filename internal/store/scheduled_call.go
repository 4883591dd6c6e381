package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateScheduledCallParams represents parameters for creating a scheduled call
type CreateScheduledCallParams struct {
	PhoneNumber   string
	ScheduledTime time.Time
	VoiceURL      string
	CallbackURL   string
	Metadata      JSONB
}

const sqlCreateScheduledCall = `
INSERT INTO scheduled_calls (phone_number, scheduled_time, status, voice_url, callback_url, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, phone_number, scheduled_time, status, call_sid, voice_url, callback_url, error_message,
          twilio_status, started_at, completed_at, last_status_update, metadata, created_at`

// CreateScheduledCall inserts a new pending call record
func (s *Store) CreateScheduledCall(ctx context.Context, params CreateScheduledCallParams) (ScheduledCall, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = JSONB{}
	}

	var call ScheduledCall
	err := s.db.GetContext(ctx, &call, sqlCreateScheduledCall,
		params.PhoneNumber,
		params.ScheduledTime,
		CallStatusPending,
		params.VoiceURL,
		params.CallbackURL,
		metadata)
	if err != nil {
		s.logger.Error(ctx, "failed to create scheduled call", err)
		return ScheduledCall{}, fmt.Errorf("failed to create scheduled call: %w", err)
	}
	return call, nil
}

const sqlGetScheduledCallsByStatus = `
SELECT * FROM scheduled_calls WHERE status = $1 ORDER BY scheduled_time ASC`

// GetScheduledCallsByStatus returns all call records in the given status
func (s *Store) GetScheduledCallsByStatus(ctx context.Context, status string) ([]ScheduledCall, error) {
	var calls []ScheduledCall
	err := s.db.SelectContext(ctx, &calls, sqlGetScheduledCallsByStatus, status)
	if err != nil {
		s.logger.Error(ctx, "failed to get scheduled calls by status", err)
		return nil, fmt.Errorf("failed to get scheduled calls by status: %w", err)
	}
	return calls, nil
}

const sqlGetScheduledCallByCallSID = `
SELECT * FROM scheduled_calls WHERE call_sid = $1`

// GetScheduledCallByCallSID looks up a record by the provider's call identifier
func (s *Store) GetScheduledCallByCallSID(ctx context.Context, callSID string) (ScheduledCall, error) {
	var call ScheduledCall
	err := s.db.GetContext(ctx, &call, sqlGetScheduledCallByCallSID, callSID)
	if err != nil {
		if isNoRows(err) {
			return ScheduledCall{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get scheduled call by call SID", err)
		return ScheduledCall{}, fmt.Errorf("failed to get scheduled call by call SID: %w", err)
	}
	return call, nil
}

const sqlMarkScheduledCallInProgress = `
UPDATE scheduled_calls
SET status = $1, call_sid = $2, started_at = $3
WHERE id = $4`

// MarkScheduledCallInProgress records a successful placement
func (s *Store) MarkScheduledCallInProgress(ctx context.Context, id uuid.UUID, callSID string,
	startedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, sqlMarkScheduledCallInProgress, CallStatusInProgress, callSID, startedAt, id)
	if err != nil {
		s.logger.Error(ctx, "failed to mark scheduled call in progress", err)
		return fmt.Errorf("failed to mark scheduled call in progress: %w", err)
	}
	return checkRowsAffected(result)
}

const sqlMarkScheduledCallFailed = `
UPDATE scheduled_calls
SET status = $1, error_message = $2
WHERE id = $3`

// MarkScheduledCallFailed records a rejected or errored placement. Terminal.
func (s *Store) MarkScheduledCallFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	result, err := s.db.ExecContext(ctx, sqlMarkScheduledCallFailed, CallStatusFailed, errorMessage, id)
	if err != nil {
		s.logger.Error(ctx, "failed to mark scheduled call failed", err)
		return fmt.Errorf("failed to mark scheduled call failed: %w", err)
	}
	return checkRowsAffected(result)
}

const sqlUpdateScheduledCallTwilioStatus = `
UPDATE scheduled_calls
SET twilio_status = $1, last_status_update = $2
WHERE id = $3`

// UpdateScheduledCallTwilioStatus records the latest raw provider status
func (s *Store) UpdateScheduledCallTwilioStatus(ctx context.Context, id uuid.UUID, twilioStatus string,
	updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, sqlUpdateScheduledCallTwilioStatus, twilioStatus, updatedAt, id)
	if err != nil {
		s.logger.Error(ctx, "failed to update scheduled call twilio status", err)
		return fmt.Errorf("failed to update scheduled call twilio status: %w", err)
	}
	return checkRowsAffected(result)
}

const sqlCompleteScheduledCall = `
UPDATE scheduled_calls
SET status = $1, completed_at = $2
WHERE id = $3`

// CompleteScheduledCall transitions a record to its terminal completed status
func (s *Store) CompleteScheduledCall(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, sqlCompleteScheduledCall, CallStatusCompleted, completedAt, id)
	if err != nil {
		s.logger.Error(ctx, "failed to complete scheduled call", err)
		return fmt.Errorf("failed to complete scheduled call: %w", err)
	}
	return checkRowsAffected(result)
}
