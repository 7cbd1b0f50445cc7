package assistant

import (
	"context"

	"voice-server/internal/clients/googleai"
	openaiClient "voice-server/internal/clients/openai"
)

// Verify interface compliance at compile time.
var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*GeminiProvider)(nil)
)

// OpenAIProvider backs conversations with OpenAI chat completions.
type OpenAIProvider struct {
	client *openaiClient.Client
}

func NewOpenAIProvider(client *openaiClient.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	msgs := make([]openaiClient.ChatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openaiClient.ChatMessage{Role: m.Role, Content: m.Content}
	}

	chunks, err := p.client.StreamChat(ctx, msgs)
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for c := range chunks {
			out <- Chunk{Content: c.Content, Err: c.Err, Completed: c.Completed}
		}
	}()
	return out, nil
}

// GeminiProvider backs conversations with Google Gemini.
type GeminiProvider struct {
	client *googleai.Client
}

func NewGeminiProvider(client *googleai.Client) *GeminiProvider {
	return &GeminiProvider{client: client}
}

func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	// Gemini has no system role here; fold the system prompt into the
	// first user turn.
	msgs := make([]googleai.ChatMessage, 0, len(messages))
	var system string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		content := m.Content
		if system != "" && m.Role == RoleUser && len(msgs) == 0 {
			content = system + "\n\n" + content
		}
		msgs = append(msgs, googleai.ChatMessage{Role: m.Role, Content: content})
	}

	chunks, err := p.client.StreamChat(ctx, msgs)
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for c := range chunks {
			out <- Chunk{Content: c.Content, Err: c.Err, Completed: c.Completed}
		}
	}()
	return out, nil
}
