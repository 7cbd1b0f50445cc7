package processor

import (
	"context"
	"sync"

	"voice-server/internal/assistant"
	"voice-server/internal/observability"
	"voice-server/internal/voice/audio"
	"voice-server/internal/voicecall/twilio"
)

// minUtteranceLength is the noise gate: transcripts shorter than this
// after trimming never reach the agent.
const minUtteranceLength = 2

// turnQueueDepth bounds how many utterances can pile up behind a slow
// agent turn before the read loop blocks.
const turnQueueDepth = 16

// session holds the per-call state of one media stream connection. The
// turn buffer and full-call accumulator are touched only by the read
// loop, so they need no locking; turns is a FIFO queue drained by a
// single worker, so agent turns run one at a time in arrival order and
// a slow reply cannot be overtaken by the next utterance's.
type session struct {
	p      *VoiceCallProcessor
	stream MediaStream

	callSid   string
	streamSid string
	from      string
	to        string
	threadID  string

	turnBuf   []byte
	callAudio []byte

	turns   chan func()
	turnWG  sync.WaitGroup
	flushed bool
}

// HandleStream runs the event loop for one media stream connection until
// the transport disconnects. Events are applied strictly in arrival
// order; agent turns run concurrently with inbound buffering but are
// processed one at a time in the order their utterances arrived. On
// disconnect the queued turns are drained, the full-call audio is
// flushed to a recording, and the
// conversation thread is released.
func (p *VoiceCallProcessor) HandleStream(ctx context.Context, stream MediaStream) {
	sess := &session{p: p, stream: stream, turns: make(chan func(), turnQueueDepth)}
	sess.startTurnWorker()

	defer func() {
		close(sess.turns)
		sess.turnWG.Wait()

		flushCtx := context.WithoutCancel(ctx)
		sess.flushRecording(flushCtx)

		if sess.threadID != "" {
			p.agent.EndThread(sess.threadID)
		}
		p.logger.Info(ctx, "Voice call session closed")
	}()

	for {
		event, err := stream.ReadEvent(ctx)
		if err != nil {
			return
		}

		switch event.Event {
		case twilio.EventStart:
			ctx = sess.handleStart(ctx, event)
		case twilio.EventMedia:
			sess.handleMedia(ctx, event)
		case twilio.EventStop:
			sess.handleStop(ctx)
		}
	}
}

// handleStart binds the call identity and conversation thread, then kicks
// off a greeting turn without waiting for caller input. It returns the
// context enriched with call identity fields for the rest of the session.
func (s *session) handleStart(ctx context.Context, event twilio.Event) context.Context {
	s.callSid = event.StartCallSid()
	s.from = event.StartFrom()
	s.to = event.StartTo()
	s.streamSid = event.Start.StreamSid
	if s.streamSid == "" {
		s.streamSid = event.StreamSid
	}
	s.threadID = assistant.ThreadID(s.callSid)

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "call_sid", Value: s.callSid},
		observability.Field{Key: "thread_id", Value: s.threadID},
	)
	s.p.logger.Info(ctx, "Voice call started")

	s.turns <- func() {
		deltas := s.p.agent.Greeting(ctx, s.threadID)
		s.speakStream(ctx, deltas)
	}

	return ctx
}

// handleMedia appends the frame's decoded payload to the turn buffer and
// the full-call accumulator. A payload that fails to decode is logged and
// dropped without disturbing the call.
func (s *session) handleMedia(ctx context.Context, event twilio.Event) {
	chunk, err := audio.Base64ToBytes(event.Media.Payload)
	if err != nil {
		s.p.logger.Error(ctx, "Failed to decode media payload", err)
		return
	}
	s.turnBuf = append(s.turnBuf, chunk...)
	s.callAudio = append(s.callAudio, chunk...)
}

// handleStop closes out the current utterance: the turn buffer is copied
// and cleared synchronously so buffering for the next utterance can
// resume immediately, then the turn is queued behind any in-flight ones.
func (s *session) handleStop(ctx context.Context) {
	if len(s.turnBuf) == 0 {
		s.p.logger.Warn(ctx, "Stop event with no buffered audio")
		return
	}

	utterance := make([]byte, len(s.turnBuf))
	copy(utterance, s.turnBuf)
	s.turnBuf = s.turnBuf[:0]

	s.turns <- func() {
		s.runTurn(ctx, utterance)
	}
}

// startTurnWorker drains the turn queue until it is closed.
func (s *session) startTurnWorker() {
	s.turnWG.Add(1)
	go func() {
		defer s.turnWG.Done()
		for turn := range s.turns {
			turn()
		}
	}()
}

// outboundSid is the stream identifier stamped on outbound frames.
func (s *session) outboundSid() string {
	if s.streamSid != "" {
		return s.streamSid
	}
	return s.callSid
}
