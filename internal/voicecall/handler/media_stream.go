package handler

import (
	"fmt"

	"voice-server/internal/apierrors"
	"voice-server/internal/voicecall/twilio"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

// HandleAnswerStream answers an inbound call with a bidirectional media
// stream connect, routing the call's audio to the WebSocket endpoint.
func (h *Handler) HandleAnswerStream(c *gin.Context) {
	say := &twiml.VoiceSay{
		Message: "Hello! Connecting you to our assistant. One moment please.",
		Voice:   h.voice.TwimlVoice,
	}
	stream := twiml.VoiceStream{
		Name: "voice-agent-stream",
		Url:  h.voice.StreamWSSURL,
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	result, err := twiml.Voice([]twiml.Element{say, connect})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), fmt.Sprintf("Stream answer TwiML: %s", result))
	c.Header("Content-Type", "text/xml")
	c.String(200, result)
}

// HandleMediaStream upgrades the request to a WebSocket and runs the
// streaming voice session until the call ends.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}

	h.logger.Info(ctx, "Twilio media stream connection established")

	stream := twilio.NewStream(conn, h.logger)
	defer stream.Close()

	h.voiceProcessor.HandleStream(ctx, stream)
}
