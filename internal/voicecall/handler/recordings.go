package handler

import (
	"context"
	"errors"
	"net/http"

	"voice-server/internal/apierrors"
	"voice-server/internal/store"

	"github.com/gin-gonic/gin"
)

// RecordingDirectory is the read/delete surface over persisted call
// recordings.
type RecordingDirectory interface {
	GetAllCallRecordings(ctx context.Context) ([]store.CallRecording, error)
	GetCallRecordingBySid(ctx context.Context, callSid string) (*store.CallRecording, error)
	DeleteCallRecording(ctx context.Context, callSid string) error
}

// HandleListRecordings returns all call recordings, newest first.
func (h *Handler) HandleListRecordings(c *gin.Context) {
	recs, err := h.recordings.GetAllCallRecordings(c.Request.Context())
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

// HandleGetRecording returns one recording by call SID.
func (h *Handler) HandleGetRecording(c *gin.Context) {
	callSid := c.Param("call_sid")

	rec, err := h.recordings.GetCallRecordingBySid(c.Request.Context(), callSid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierrors.NotFound(c, "recording not found")
			return
		}
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleDeleteRecording removes a recording's metadata. The audio file on
// disk is left for out-of-band retention handling.
func (h *Handler) HandleDeleteRecording(c *gin.Context) {
	callSid := c.Param("call_sid")

	if err := h.recordings.DeleteCallRecording(c.Request.Context(), callSid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierrors.NotFound(c, "recording not found")
			return
		}
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
