package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"voice-server/internal/observability"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const systemPrompt = "You are Luna, a personal productivity assistant speaking with a caller on the phone. " +
	"Keep replies short and conversational; everything you say will be read aloud."

const greetingPrompt = "You have just received a phone call. Briefly introduce yourself as Luna, " +
	"the personal productivity assistant, and ask how you can help."

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
}

// Chunk is one unit of a provider's streaming response. Providers may emit
// true deltas or cumulative whole-message snapshots; the session normalizes
// both into suffix-only deltas downstream.
type Chunk struct {
	Content   string
	Err       error
	Completed bool
}

// Provider is a conversational agent backend.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan Chunk, error)
}

// threadTTL bounds how long an idle thread survives. The streaming binding
// ends threads explicitly on disconnect, but the webhook binding has no
// reliable end-of-call signal for abandoned calls, so idle threads are
// evicted lazily on the next turn of any call.
const threadTTL = 30 * time.Minute

type thread struct {
	messages   []Message
	lastActive time.Time
}

// Assistant owns per-call conversation threads and invokes the configured
// provider. One thread holds agent memory for the whole call; threads are
// keyed by call SID so no two calls ever share memory.
type Assistant struct {
	provider Provider
	logger   *observability.Logger

	mu      sync.Mutex
	threads map[string]*thread
}

func New(provider Provider, logger *observability.Logger) *Assistant {
	return &Assistant{
		provider: provider,
		logger:   logger,
		threads:  make(map[string]*thread),
	}
}

// ThreadID derives the conversation thread identifier for a call. The
// placeholder is used until the transport announces the call SID; once a
// real SID is bound the thread must not change for the rest of the call.
func ThreadID(callSid string) string {
	if callSid == "" {
		return "twilio-unknown"
	}
	return "twilio-" + callSid
}

// StreamReply sends an utterance to the agent on the given thread and
// returns a lazy channel of text deltas. Each delta is the suffix not
// previously emitted, even when the provider sends cumulative snapshots.
// Provider errors are logged and absorbed; the channel just closes.
func (a *Assistant) StreamReply(ctx context.Context, threadID, utterance string) <-chan string {
	out := make(chan string)

	a.mu.Lock()
	a.evictIdleLocked(time.Now())
	th := a.threads[threadID]
	if th == nil {
		th = &thread{}
		a.threads[threadID] = th
	}
	th.messages = append(th.messages, Message{Role: RoleUser, Content: utterance})
	th.lastActive = time.Now()
	history := make([]Message, 0, len(th.messages)+1)
	history = append(history, Message{Role: RoleSystem, Content: systemPrompt})
	history = append(history, th.messages...)
	a.mu.Unlock()

	go func() {
		defer close(out)

		chunks, err := a.provider.StreamChat(ctx, history)
		if err != nil {
			a.logger.Error(ctx, "Failed to start agent stream", err)
			return
		}

		var emitted strings.Builder
		for chunk := range chunks {
			if chunk.Err != nil {
				a.logger.Error(ctx, "Agent stream failed", chunk.Err)
				break
			}
			if chunk.Content == "" {
				continue
			}

			delta := chunk.Content
			if strings.HasPrefix(chunk.Content, emitted.String()) {
				// Cumulative snapshot: emit only the unseen suffix.
				delta = chunk.Content[emitted.Len():]
			}
			if delta == "" {
				continue
			}
			emitted.WriteString(delta)

			select {
			case out <- delta:
			case <-ctx.Done():
				return
			}
		}

		if emitted.Len() > 0 {
			a.mu.Lock()
			if th, ok := a.threads[threadID]; ok {
				th.messages = append(th.messages, Message{Role: RoleAssistant, Content: emitted.String()})
				th.lastActive = time.Now()
			}
			a.mu.Unlock()
		}
	}()

	return out
}

// Reply runs a full turn to completion and returns the whole response.
// Used by the turn-based webhook binding, which is request/response.
func (a *Assistant) Reply(ctx context.Context, threadID, utterance string) (string, error) {
	var full strings.Builder
	for delta := range a.StreamReply(ctx, threadID, utterance) {
		full.WriteString(delta)
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("agent returned no response")
	}
	return full.String(), nil
}

// Greeting produces the initial, unprompted introduction turn for a call.
func (a *Assistant) Greeting(ctx context.Context, threadID string) <-chan string {
	return a.StreamReply(ctx, threadID, greetingPrompt)
}

// EndThread releases a call's conversation memory.
func (a *Assistant) EndThread(threadID string) {
	a.mu.Lock()
	delete(a.threads, threadID)
	a.mu.Unlock()
}

// evictIdleLocked drops threads idle longer than threadTTL. Callers must
// hold a.mu.
func (a *Assistant) evictIdleLocked(now time.Time) {
	for id, th := range a.threads {
		if now.Sub(th.lastActive) > threadTTL {
			delete(a.threads, id)
		}
	}
}
