package handler

import (
	"context"
	"net/http"

	"voice-server/internal/config"
	"voice-server/internal/observability"
	"voice-server/internal/voicecall/processor"

	"github.com/gorilla/websocket"
)

// ConversationAgent is the blocking reply surface the webhook binding
// uses; the streaming binding goes through the processor instead. The
// webhook must end threads itself when a call wraps up since it has no
// disconnect signal to hang cleanup on.
type ConversationAgent interface {
	Reply(ctx context.Context, threadID, utterance string) (string, error)
	EndThread(threadID string)
}

type Handler struct {
	voiceProcessor *processor.VoiceCallProcessor
	agent          ConversationAgent
	recordings     RecordingDirectory
	voice          config.VoiceConfig
	logger         *observability.Logger
}

func New(voiceProcessor *processor.VoiceCallProcessor, agent ConversationAgent, recordings RecordingDirectory, voice config.VoiceConfig, logger *observability.Logger) Handler {
	return Handler{
		voiceProcessor: voiceProcessor,
		agent:          agent,
		recordings:     recordings,
		voice:          voice,
		logger:         logger,
	}
}

// upgrader is a shared WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Add proper origin validation for production
		return true
	},
}
