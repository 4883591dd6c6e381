package handler

import (
	"net/http"

	"voice-bridge-server/internal/apierrors"
	"voice-bridge-server/internal/phonecall/processor"

	"github.com/gin-gonic/gin"
)

// ScheduleCallRequest is the scheduling endpoint request body.
type ScheduleCallRequest struct {
	PhoneNumber   string                 `json:"phone_number" binding:"required"`
	ScheduledTime string                 `json:"scheduled_time" binding:"required"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// HandleScheduleCall validates a scheduling request and creates the record.
func (h *Handler) HandleScheduleCall(c *gin.Context) {
	var req ScheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationError(c, err)
		return
	}

	call, err := h.processor.ScheduleCall(c.Request.Context(), processor.ScheduleCallParams{
		PhoneNumber:   req.PhoneNumber,
		ScheduledTime: req.ScheduledTime,
		Metadata:      req.Metadata,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, call)
}

// HandleStatusCallback receives asynchronous call status notifications.
// It always acknowledges, even for unknown calls, to avoid provider-side
// retry storms.
func (h *Handler) HandleStatusCallback(c *gin.Context) {
	ctx := c.Request.Context()

	callSID := c.PostForm("CallSid")
	callStatus := c.PostForm("CallStatus")

	if callSID != "" {
		if err := h.processor.ApplyStatusCallback(ctx, callSID, callStatus); err != nil {
			h.logger.Error(ctx, "Failed to apply status callback", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandleConfigureVoiceWebhook points the provider phone number at this
// deployment's voice webhook.
func (h *Handler) HandleConfigureVoiceWebhook(c *gin.Context) {
	if err := h.processor.ConfigureVoiceWebhook(c.Request.Context()); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voice_url": h.processor.VoiceURL()})
}
