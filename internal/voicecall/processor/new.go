package processor

import (
	"voice-server/internal/observability"
)

// VoiceCallProcessor drives streaming voice call sessions: it owns the
// collaborator handles shared by all calls and spawns one session per
// media stream connection.
type VoiceCallProcessor struct {
	transcriber   Transcriber
	synthesizer   SpeechSynthesizer
	agent         Agent
	recordings    RecordingStore
	recordingsDir string
	logger        *observability.Logger
}

func NewVoiceCallProcessor(
	transcriber Transcriber,
	synthesizer SpeechSynthesizer,
	agent Agent,
	recordings RecordingStore,
	recordingsDir string,
	logger *observability.Logger,
) *VoiceCallProcessor {
	return &VoiceCallProcessor{
		transcriber:   transcriber,
		synthesizer:   synthesizer,
		agent:         agent,
		recordings:    recordings,
		recordingsDir: recordingsDir,
		logger:        logger,
	}
}
