package processor

import (
	"context"
	"strings"

	"voice-server/internal/observability"
	"voice-server/internal/voice/audio"
	"voice-server/internal/voicecall/twilio"
)

// markTurnComplete names the mark frame sent after a turn's audio has all
// been handed to the transport.
const markTurnComplete = "agent_turn_complete"

// runTurn processes one finalized utterance end to end. Every failure in
// here is logged and absorbed; a bad utterance never ends the call.
func (s *session) runTurn(ctx context.Context, utterance []byte) {
	transcript := s.transcribe(ctx, utterance)
	if len(strings.TrimSpace(transcript)) < minUtteranceLength {
		s.p.logger.Info(observability.WithFields(ctx,
			observability.Field{Key: "transcript", Value: transcript},
		), "Skipping utterance below minimum length")
		return
	}

	s.p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "transcript", Value: transcript},
	), "Transcribed caller utterance")

	deltas := s.p.agent.StreamReply(ctx, s.threadID, transcript)
	s.speakStream(ctx, deltas)
}

// transcribe decodes the utterance to WAV-framed PCM and submits it for
// transcription. Returns the empty string on any failure.
func (s *session) transcribe(ctx context.Context, mulaw []byte) string {
	pcm := audio.DecodeMuLawToPCM(mulaw)
	text, err := s.p.transcriber.Transcribe(ctx, audio.WAV(pcm))
	if err != nil {
		s.p.logger.Error(ctx, "Transcription failed", err)
		return ""
	}
	return text
}

// speakStream reads agent text deltas, synthesizes them sentence by
// sentence as soon as each sentence completes, and streams the audio
// outbound. After the reply finishes it sends the full text as a response
// frame and a turn-complete mark.
func (s *session) speakStream(ctx context.Context, deltas <-chan string) {
	var full, pending strings.Builder

	for delta := range deltas {
		full.WriteString(delta)
		pending.WriteString(delta)

		for {
			sentence, rest, ok := splitSentence(pending.String())
			if !ok {
				break
			}
			s.speak(ctx, sentence)
			pending.Reset()
			pending.WriteString(rest)
		}
	}
	s.speak(ctx, pending.String())

	if full.Len() == 0 {
		s.p.logger.Warn(ctx, "Agent produced no reply text")
		return
	}

	err := s.stream.WriteEvent(twilio.ResponseEvent{
		Event:     twilio.EventResponse,
		StreamSid: s.outboundSid(),
		Text:      full.String(),
	})
	if err != nil {
		s.p.logger.Warn(ctx, "Failed to send response text frame")
	}

	err = s.stream.WriteEvent(twilio.MarkEvent{
		Event:     twilio.EventMark,
		StreamSid: s.outboundSid(),
		Mark:      twilio.MarkName{Name: markTurnComplete},
	})
	if err != nil {
		s.p.logger.Warn(ctx, "Failed to send turn-complete mark")
	}
}

// speak synthesizes one piece of text and streams the audio chunks
// outbound in generation order. The loop checks transport liveness
// between chunks and aborts synthesis promptly once the peer is gone.
func (s *session) speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := s.p.synthesizer.StreamSpeech(ctx, text)
	if err != nil {
		s.p.logger.Error(ctx, "Speech synthesis failed", err)
		return
	}

	for chunk := range chunks {
		if !s.stream.Connected() {
			s.p.logger.Warn(ctx, "Transport disconnected, aborting synthesis")
			return
		}
		if len(chunk) == 0 {
			continue
		}

		err := s.stream.WriteEvent(twilio.MediaEvent{
			Event:     twilio.EventMedia,
			StreamSid: s.outboundSid(),
			Media:     twilio.MediaPayload{Payload: audio.BytesToBase64(chunk)},
		})
		if err != nil {
			s.p.logger.Warn(ctx, "Failed to send audio chunk")
			return
		}
	}
}

// splitSentence splits text at the first sentence boundary, returning the
// complete sentence (boundary included) and the remainder.
func splitSentence(text string) (sentence, rest string, ok bool) {
	if i := strings.IndexAny(text, ".!?\n"); i >= 0 {
		return text[:i+1], text[i+1:], true
	}
	return "", text, false
}
