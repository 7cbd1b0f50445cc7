package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voice-server/internal/observability"
	"voice-server/internal/store"
	"voice-server/internal/voice/audio"
)

// safetySaveThreshold is the minimum accumulated audio size, in encoded
// bytes, that justifies a second save attempt under a fallback identifier
// after the primary save fails.
const safetySaveThreshold = 1000

// flushRecording persists the full-call audio accumulator exactly once
// per session. An empty accumulator or a call that never announced its
// identity is skipped without error; a failed primary save is retried
// under a fallback identifier when enough audio is at stake to be worth
// keeping.
func (s *session) flushRecording(ctx context.Context) {
	if s.flushed {
		return
	}
	s.flushed = true

	if len(s.callAudio) == 0 || s.callSid == "" {
		s.p.logger.Info(ctx, "No call audio to record, skipping save")
		return
	}

	if err := s.saveRecording(ctx, s.callSid); err != nil {
		s.p.logger.Error(ctx, "Failed to save call recording", err)

		if len(s.callAudio) > safetySaveThreshold {
			if err := s.saveRecording(ctx, s.callSid+"_safety"); err != nil {
				s.p.logger.Error(ctx, "Safety recording save failed", err)
			}
		}
	}
}

// saveRecording transcodes the accumulator to a WAV file at a call-scoped
// path and creates the recording entry. A metadata persistence failure is
// logged but does not fail the save; the audio file on disk is the
// artifact that matters most.
func (s *session) saveRecording(ctx context.Context, callSid string) error {
	pcm := audio.DecodeMuLawToPCM(s.callAudio)
	wav := audio.WAV(pcm)

	if err := os.MkdirAll(s.p.recordingsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}

	filename := fmt.Sprintf("call_%s_%s.wav", callSid, time.Now().Format("20060102_150405"))
	path := filepath.Join(s.p.recordingsDir, filename)

	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("failed to write recording file: %w", err)
	}

	rec := store.CallRecording{
		CallSid:         callSid,
		RecordingPath:   path,
		FromNumber:      store.NullString(s.from),
		ToNumber:        store.NullString(s.to),
		DurationSeconds: audio.DurationSeconds(len(pcm)),
		FileSizeBytes:   int64(len(wav)),
		Status:          store.RecordingStatusCompleted,
	}
	if _, err := s.p.recordings.CreateCallRecording(ctx, rec); err != nil {
		s.p.logger.Error(ctx, "Failed to persist recording metadata", err)
	} else {
		s.p.logger.Info(observability.WithFields(ctx,
			observability.Field{Key: "recording_path", Value: path},
			observability.Field{Key: "duration_seconds", Value: rec.DurationSeconds},
		), "Call recording saved")
	}

	return nil
}
