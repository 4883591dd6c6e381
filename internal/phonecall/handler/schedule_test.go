package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"voice-bridge-server/internal/observability"
	"voice-bridge-server/internal/phonecall/processor"
	"voice-bridge-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCallStore records transitions in memory, keyed by call SID.
type stubCallStore struct {
	calls           map[string]store.ScheduledCall
	created         []store.CreateScheduledCallParams
	statusUpdates   []string
	completedCallID *uuid.UUID
}

func newStubCallStore() *stubCallStore {
	return &stubCallStore{calls: map[string]store.ScheduledCall{}}
}

func (s *stubCallStore) CreateScheduledCall(ctx context.Context,
	params store.CreateScheduledCallParams) (store.ScheduledCall, error) {
	s.created = append(s.created, params)
	return store.ScheduledCall{
		ID:            uuid.New(),
		PhoneNumber:   params.PhoneNumber,
		ScheduledTime: params.ScheduledTime,
		Status:        store.CallStatusPending,
		VoiceURL:      params.VoiceURL,
		CallbackURL:   params.CallbackURL,
	}, nil
}

func (s *stubCallStore) GetScheduledCallByCallSID(ctx context.Context,
	callSID string) (store.ScheduledCall, error) {
	call, ok := s.calls[callSID]
	if !ok {
		return store.ScheduledCall{}, store.ErrNotFound
	}
	return call, nil
}

func (s *stubCallStore) UpdateScheduledCallTwilioStatus(ctx context.Context, id uuid.UUID,
	twilioStatus string, updatedAt time.Time) error {
	s.statusUpdates = append(s.statusUpdates, twilioStatus)
	return nil
}

func (s *stubCallStore) CompleteScheduledCall(ctx context.Context, id uuid.UUID,
	completedAt time.Time) error {
	s.completedCallID = &id
	return nil
}

func newTestHandler(callStore processor.CallStore) Handler {
	logger := observability.NewLogger()
	p := processor.New(callStore, nil, "calls.example.com", logger)
	return New(p, nil, "calls.example.com", logger)
}

func postJSON(t *testing.T, handle gin.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(path, handle)

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func postForm(t *testing.T, handle gin.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(path, handle)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHandleScheduleCall_CreatesCall(t *testing.T) {
	callStore := newStubCallStore()
	h := newTestHandler(callStore)

	recorder := postJSON(t, h.HandleScheduleCall, "/api/phone/schedule", map[string]interface{}{
		"phone_number":   "(555) 123-4567",
		"scheduled_time": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusCreated, recorder.Code)
	require.Len(t, callStore.created, 1)
	assert.Equal(t, "+15551234567", callStore.created[0].PhoneNumber)
	assert.Equal(t, "https://calls.example.com/api/phone/voice", callStore.created[0].VoiceURL)
	assert.Equal(t, "https://calls.example.com/api/phone/status-callback", callStore.created[0].CallbackURL)

	var call store.ScheduledCall
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &call))
	assert.Equal(t, store.CallStatusPending, call.Status)
}

func TestHandleScheduleCall_MissingFieldsFailValidation(t *testing.T) {
	h := newTestHandler(newStubCallStore())

	recorder := postJSON(t, h.HandleScheduleCall, "/api/phone/schedule", map[string]interface{}{
		"phone_number": "5551234567",
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleScheduleCall_InvalidPhoneNumberIsBadRequest(t *testing.T) {
	callStore := newStubCallStore()
	h := newTestHandler(callStore)

	recorder := postJSON(t, h.HandleScheduleCall, "/api/phone/schedule", map[string]interface{}{
		"phone_number":   "12345",
		"scheduled_time": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INVALID_PHONE_NUMBER")
	assert.Empty(t, callStore.created)
}

func TestHandleScheduleCall_PastTimeIsBadRequest(t *testing.T) {
	h := newTestHandler(newStubCallStore())

	recorder := postJSON(t, h.HandleScheduleCall, "/api/phone/schedule", map[string]interface{}{
		"phone_number":   "5551234567",
		"scheduled_time": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INVALID_SCHEDULED_TIME")
}

func TestHandleStatusCallback_TerminalStatusCompletesCall(t *testing.T) {
	callStore := newStubCallStore()
	callID := uuid.New()
	callStore.calls["CA123"] = store.ScheduledCall{ID: callID, Status: store.CallStatusInProgress}
	h := newTestHandler(callStore)

	recorder := postForm(t, h.HandleStatusCallback, "/api/phone/status-callback", url.Values{
		"CallSid":    {"CA123"},
		"CallStatus": {"completed"},
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"completed"}, callStore.statusUpdates)
	require.NotNil(t, callStore.completedCallID)
	assert.Equal(t, callID, *callStore.completedCallID)
}

func TestHandleStatusCallback_UnknownCallStillAcknowledged(t *testing.T) {
	callStore := newStubCallStore()
	h := newTestHandler(callStore)

	recorder := postForm(t, h.HandleStatusCallback, "/api/phone/status-callback", url.Values{
		"CallSid":    {"CA999"},
		"CallStatus": {"completed"},
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "received")
	assert.Nil(t, callStore.completedCallID)
}

func TestHandleStatusCallback_MissingCallSidStillAcknowledged(t *testing.T) {
	callStore := newStubCallStore()
	h := newTestHandler(callStore)

	recorder := postForm(t, h.HandleStatusCallback, "/api/phone/status-callback", url.Values{})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, callStore.statusUpdates)
}

func TestHandleStatusCallback_RepeatedTerminalCallbacksAcknowledged(t *testing.T) {
	callStore := newStubCallStore()
	callStore.calls["CA123"] = store.ScheduledCall{ID: uuid.New(), Status: store.CallStatusCompleted}
	h := newTestHandler(callStore)

	for i := 0; i < 2; i++ {
		recorder := postForm(t, h.HandleStatusCallback, "/api/phone/status-callback", url.Values{
			"CallSid":    {"CA123"},
			"CallStatus": {"completed"},
		})
		assert.Equal(t, http.StatusOK, recorder.Code, fmt.Sprintf("callback %d", i+1))
	}

	// The record was already terminal, so no completion transition fires.
	assert.Nil(t, callStore.completedCallID)
}
