package processor

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"voice-server/internal/observability"
	"voice-server/internal/store"
	"voice-server/internal/voice/audio"
	"voice-server/internal/voicecall/twilio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream scripts inbound events and records outbound frames. When the
// script is exhausted, or after disconnectAfterWrites successful media
// writes, it behaves like a closed transport.
type fakeStream struct {
	mu                    sync.Mutex
	events                []twilio.Event
	idx                   int
	written               []interface{}
	mediaWrites           int
	disconnectAfterWrites int
	connected             bool
}

func newFakeStream(events ...twilio.Event) *fakeStream {
	return &fakeStream{events: events, connected: true}
}

func (f *fakeStream) ReadEvent(_ context.Context) (twilio.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.events) {
		return twilio.Event{}, io.EOF
	}
	event := f.events[f.idx]
	f.idx++
	return event, nil
}

func (f *fakeStream) WriteEvent(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("connection closed")
	}
	f.written = append(f.written, v)
	if _, ok := v.(twilio.MediaEvent); ok {
		f.mediaWrites++
		if f.disconnectAfterWrites > 0 && f.mediaWrites >= f.disconnectAfterWrites {
			f.connected = false
		}
	}
	return nil
}

func (f *fakeStream) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeStream) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeStream) writtenEvents() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.written))
	copy(out, f.written)
	return out
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	return s.text, s.err
}

// scriptedTranscriber returns a different transcript on each call.
type scriptedTranscriber struct {
	mu    sync.Mutex
	texts []string
	call  int
}

func (s *scriptedTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.texts[s.call]
	s.call++
	return text, nil
}

type stubSynthesizer struct {
	mu     sync.Mutex
	chunks [][]byte
	texts  []string
}

func (s *stubSynthesizer) StreamSpeech(_ context.Context, text string) (<-chan []byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	ch := make(chan []byte, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type stubAgent struct {
	mu            sync.Mutex
	deltas        []string
	utterances    []string
	ended         []string
	greetingDelay time.Duration
}

func (a *stubAgent) StreamReply(_ context.Context, _ string, utterance string) <-chan string {
	a.mu.Lock()
	a.utterances = append(a.utterances, utterance)
	a.mu.Unlock()

	ch := make(chan string, len(a.deltas))
	for _, d := range a.deltas {
		ch <- d
	}
	close(ch)
	return ch
}

func (a *stubAgent) Greeting(_ context.Context, _ string) <-chan string {
	ch := make(chan string)
	go func() {
		time.Sleep(a.greetingDelay)
		close(ch)
	}()
	return ch
}

func (a *stubAgent) EndThread(threadID string) {
	a.mu.Lock()
	a.ended = append(a.ended, threadID)
	a.mu.Unlock()
}

type stubRecordingStore struct {
	mu      sync.Mutex
	created []store.CallRecording
}

func (s *stubRecordingStore) CreateCallRecording(_ context.Context, rec store.CallRecording) (*store.CallRecording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, rec)
	return &rec, nil
}

func (s *stubRecordingStore) all() []store.CallRecording {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.CallRecording, len(s.created))
	copy(out, s.created)
	return out
}

func newTestProcessor(t *testing.T, transcriber Transcriber, synth SpeechSynthesizer, agent Agent, recordings RecordingStore) *VoiceCallProcessor {
	t.Helper()
	return NewVoiceCallProcessor(transcriber, synth, agent, recordings, t.TempDir(), observability.NewLogger())
}

func startEvent(callSid string) twilio.Event {
	event := twilio.Event{Event: twilio.EventStart}
	event.Start.CallSid = callSid
	event.Start.StreamSid = "MZ" + callSid
	event.Start.From = "+15550001111"
	event.Start.To = "+15550002222"
	return event
}

func mediaEvent(mulaw []byte) twilio.Event {
	event := twilio.Event{Event: twilio.EventMedia}
	event.Media.Payload = audio.BytesToBase64(mulaw)
	return event
}

func TestHandleStream_FullTurn(t *testing.T) {
	frame := make([]byte, 800)
	for i := range frame {
		frame[i] = 0x7F
	}

	events := []twilio.Event{startEvent("CA1")}
	for i := 0; i < 5; i++ {
		events = append(events, mediaEvent(frame))
	}
	events = append(events, twilio.Event{Event: twilio.EventStop})

	stream := newFakeStream(events...)
	agent := &stubAgent{deltas: []string{"Added milk."}}
	synth := &stubSynthesizer{chunks: [][]byte{make([]byte, 320)}}
	recordings := &stubRecordingStore{}
	p := newTestProcessor(t, &stubTranscriber{text: "add milk to my list"}, synth, agent, recordings)

	p.HandleStream(context.Background(), stream)

	assert.Equal(t, []string{"add milk to my list"}, agent.utterances)
	assert.Equal(t, []string{"Added milk."}, synth.texts)

	var media []twilio.MediaEvent
	var marks []twilio.MarkEvent
	var responses []twilio.ResponseEvent
	for _, w := range stream.writtenEvents() {
		switch e := w.(type) {
		case twilio.MediaEvent:
			media = append(media, e)
		case twilio.MarkEvent:
			marks = append(marks, e)
		case twilio.ResponseEvent:
			responses = append(responses, e)
		}
	}

	require.Len(t, media, 1)
	assert.NotEmpty(t, media[0].Media.Payload)
	assert.Equal(t, "MZCA1", media[0].StreamSid)

	require.Len(t, marks, 1)
	assert.Equal(t, "agent_turn_complete", marks[0].Mark.Name)

	require.Len(t, responses, 1)
	assert.Equal(t, "Added milk.", responses[0].Text)

	// Media precedes the mark in transmission order.
	written := stream.writtenEvents()
	var mediaIdx, markIdx int
	for i, w := range written {
		switch w.(type) {
		case twilio.MediaEvent:
			mediaIdx = i
		case twilio.MarkEvent:
			markIdx = i
		}
	}
	assert.Less(t, mediaIdx, markIdx)

	// Full-call audio was flushed on disconnect.
	recs := recordings.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "CA1", recs[0].CallSid)
	assert.Equal(t, store.RecordingStatusCompleted, recs[0].Status)
	assert.FileExists(t, recs[0].RecordingPath)

	data, err := os.ReadFile(recs[0].RecordingPath)
	require.NoError(t, err)
	// 44-byte WAV header plus 2 bytes of PCM per encoded byte.
	assert.Len(t, data, 44+2*4000)

	assert.Equal(t, []string{"twilio-CA1"}, agent.ended)
}

func TestSession_TurnBufferAccounting(t *testing.T) {
	frames := [][]byte{
		make([]byte, 160),
		make([]byte, 320),
		make([]byte, 160),
	}

	recordings := &stubRecordingStore{}
	p := newTestProcessor(t, &stubTranscriber{}, &stubSynthesizer{}, &stubAgent{}, recordings)
	sess := &session{p: p, stream: newFakeStream(), turns: make(chan func(), turnQueueDepth)}
	sess.startTurnWorker()

	ctx := context.Background()
	total := 0
	for _, f := range frames {
		sess.handleMedia(ctx, mediaEvent(f))
		total += len(f)
	}

	assert.Len(t, sess.turnBuf, total)
	assert.Len(t, sess.callAudio, total)

	sess.handleStop(ctx)
	close(sess.turns)
	sess.turnWG.Wait()

	assert.Empty(t, sess.turnBuf)
	assert.Len(t, sess.callAudio, total)
}

func TestHandleStream_TurnsRunInArrivalOrder(t *testing.T) {
	events := []twilio.Event{startEvent("CA7")}
	for i := 0; i < 3; i++ {
		events = append(events, mediaEvent(make([]byte, 160)), twilio.Event{Event: twilio.EventStop})
	}
	stream := newFakeStream(events...)

	transcriber := &scriptedTranscriber{texts: []string{"first thing", "second thing", "third thing"}}
	agent := &stubAgent{deltas: []string{"Noted."}, greetingDelay: 50 * time.Millisecond}
	p := newTestProcessor(t, transcriber, &stubSynthesizer{}, agent, &stubRecordingStore{})

	// The slow greeting keeps all three utterances queued behind it; they
	// must still reach the agent in the order the caller spoke them.
	p.HandleStream(context.Background(), stream)

	assert.Equal(t, []string{"first thing", "second thing", "third thing"}, agent.utterances)
}

func TestHandleStream_DisconnectMidSynthesis(t *testing.T) {
	frame := make([]byte, 400)

	stream := newFakeStream(
		startEvent("CA2"),
		mediaEvent(frame),
		twilio.Event{Event: twilio.EventStop},
	)
	stream.disconnectAfterWrites = 3

	chunks := make([][]byte, 10)
	for i := range chunks {
		chunks[i] = make([]byte, 320)
	}
	synth := &stubSynthesizer{chunks: chunks}
	agent := &stubAgent{deltas: []string{"Here is a rather long reply."}}
	recordings := &stubRecordingStore{}
	p := newTestProcessor(t, &stubTranscriber{text: "tell me something long"}, synth, agent, recordings)

	p.HandleStream(context.Background(), stream)

	var media int
	for _, w := range stream.writtenEvents() {
		if _, ok := w.(twilio.MediaEvent); ok {
			media++
		}
	}
	assert.Equal(t, 3, media)

	// Inbound audio is still flushed to a recording after the disconnect.
	recs := recordings.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "CA2", recs[0].CallSid)
	assert.FileExists(t, recs[0].RecordingPath)
}

func TestHandleStream_ShortTranscriptSkipsAgent(t *testing.T) {
	stream := newFakeStream(
		startEvent("CA3"),
		mediaEvent(make([]byte, 160)),
		twilio.Event{Event: twilio.EventStop},
	)

	agent := &stubAgent{deltas: []string{"should never be sent"}}
	p := newTestProcessor(t, &stubTranscriber{text: " a "}, &stubSynthesizer{}, agent, &stubRecordingStore{})

	p.HandleStream(context.Background(), stream)

	assert.Empty(t, agent.utterances)
}

func TestHandleStream_TranscriptionFailureAbsorbed(t *testing.T) {
	stream := newFakeStream(
		startEvent("CA4"),
		mediaEvent(make([]byte, 160)),
		twilio.Event{Event: twilio.EventStop},
		mediaEvent(make([]byte, 160)),
		twilio.Event{Event: twilio.EventStop},
	)

	agent := &stubAgent{}
	p := newTestProcessor(t, &stubTranscriber{err: errors.New("whisper unavailable")}, &stubSynthesizer{}, agent, &stubRecordingStore{})

	// Both turns fail to transcribe; the session still runs to completion.
	p.HandleStream(context.Background(), stream)

	assert.Empty(t, agent.utterances)
	assert.Equal(t, []string{"twilio-CA4"}, agent.ended)
}

func TestFlushRecording_EmptyAccumulatorSkipsPersistence(t *testing.T) {
	recordings := &stubRecordingStore{}
	p := newTestProcessor(t, &stubTranscriber{}, &stubSynthesizer{}, &stubAgent{}, recordings)

	sess := &session{p: p, stream: newFakeStream(), callSid: "CA5"}
	sess.flushRecording(context.Background())
	sess.flushRecording(context.Background())

	assert.Empty(t, recordings.all())
}

func TestFlushRecording_RunsOnce(t *testing.T) {
	recordings := &stubRecordingStore{}
	p := newTestProcessor(t, &stubTranscriber{}, &stubSynthesizer{}, &stubAgent{}, recordings)

	sess := &session{
		p:         p,
		stream:    newFakeStream(),
		callSid:   "CA6",
		callAudio: make([]byte, 2000),
	}
	sess.flushRecording(context.Background())
	sess.flushRecording(context.Background())

	recs := recordings.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "CA6", recs[0].CallSid)
}
