package processor

import (
	"context"

	"voice-server/internal/store"
	"voice-server/internal/voicecall/twilio"
)

// Transcriber turns WAV-framed audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// SpeechSynthesizer produces a finite, non-restartable stream of audio
// chunks for the given text. The channel closes when synthesis finishes
// or the context is cancelled.
type SpeechSynthesizer interface {
	StreamSpeech(ctx context.Context, text string) (<-chan []byte, error)
}

// Agent is the conversational backend. Replies arrive as incremental text
// deltas; the channel closes when the reply is complete.
type Agent interface {
	StreamReply(ctx context.Context, threadID, utterance string) <-chan string
	Greeting(ctx context.Context, threadID string) <-chan string
	EndThread(threadID string)
}

// RecordingStore persists call recording metadata.
type RecordingStore interface {
	CreateCallRecording(ctx context.Context, rec store.CallRecording) (*store.CallRecording, error)
}

// MediaStream is the transport contract the session handler is coded
// against: ordered inbound events, outbound frame writes, and a liveness
// check. One implementation exists per concrete transport.
type MediaStream interface {
	ReadEvent(ctx context.Context) (twilio.Event, error)
	WriteEvent(v interface{}) error
	Connected() bool
	Close()
}
