package googleai

import (
	"context"
	"errors"
	"fmt"

	"voice-server/internal/observability"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.0-flash"

// ChatMessage is one turn of chat history sent to the model.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// StreamChunk is one unit of a streaming chat response.
type StreamChunk struct {
	Content   string
	Err       error
	Completed bool
}

// Client wraps the Gemini SDK as an alternate conversation backend.
type Client struct {
	apiKey string
	logger *observability.Logger
}

func NewClient(apiKey string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Google AI API key is required")
	}
	return &Client{apiKey: apiKey, logger: logger}, nil
}

// StreamChat starts a streaming Gemini chat and returns a channel of
// incremental text deltas. The last message is the prompt; everything
// before it becomes chat history. System messages are folded into history
// as user turns since Gemini has no system role in this API surface.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage) (<-chan StreamChunk, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model" // Gemini SDK expects "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	prompt := genai.Text(messages[len(messages)-1].Content)

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)

		client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
		if err != nil {
			c.logger.Error(ctx, "Failed to create Gemini client", err)
			chunks <- StreamChunk{Err: fmt.Errorf("failed to create Gemini client: %w", err)}
			return
		}
		defer client.Close()

		model := client.GenerativeModel(geminiModel)
		chat := model.StartChat()
		chat.History = history
		iter := chat.SendMessageStream(ctx, prompt)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				chunks <- StreamChunk{Completed: true}
				return
			}
			if err != nil {
				c.logger.Error(ctx, "Failed to get next Gemini response", err)
				chunks <- StreamChunk{Err: fmt.Errorf("failed to get Gemini response: %w", err)}
				return
			}

			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if text, ok := part.(genai.Text); ok && text != "" {
					select {
					case chunks <- StreamChunk{Content: string(text)}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return chunks, nil
}
