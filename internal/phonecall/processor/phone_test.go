package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "ten digits gets default country code",
			input: "5551234567",
			want:  "+15551234567",
		},
		{
			name:  "ten digits with formatting",
			input: "(555) 123-4567",
			want:  "+15551234567",
		},
		{
			name:  "eleven digits starting with country code",
			input: "15551234567",
			want:  "+15551234567",
		},
		{
			name:  "eleven digits with plus and dashes",
			input: "+1-555-123-4567",
			want:  "+15551234567",
		},
		{
			name:    "eleven digits not starting with country code",
			input:   "25551234567",
			wantErr: true,
		},
		{
			name:    "too short",
			input:   "12345",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "letters only",
			input:   "call me maybe",
			wantErr: true,
		},
		{
			name:    "twelve digits",
			input:   "155512345678",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhoneNumber(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhoneNumber)
				assert.Empty(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateScheduledTime(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "future time is accepted",
			input: "2025-06-15T13:00:00Z",
		},
		{
			name:  "future time in another zone",
			input: "2025-06-15T09:00:00-05:00",
		},
		{
			name:    "past time is rejected",
			input:   "2025-06-15T11:00:00Z",
			wantErr: true,
		},
		{
			name:    "exactly now is rejected",
			input:   "2025-06-15T12:00:00Z",
			wantErr: true,
		},
		{
			name:    "not a timestamp",
			input:   "tomorrow at noon",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateScheduledTime(tt.input, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScheduledTime)
				return
			}
			assert.NoError(t, err)
			assert.True(t, got.After(now))
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}
