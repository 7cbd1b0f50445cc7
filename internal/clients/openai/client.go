package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"voice-server/internal/observability"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

const (
	ttsModel     = openai.SpeechModelGPT4oMiniTTS
	ttsSpeed     = 1.2
	chatModel    = openai.ChatModelGPT4oMini
	ttsChunkSize = 4096
)

// ChatMessage is one turn of chat history sent to the model.
type ChatMessage struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// StreamChunk is one unit of a streaming chat response.
type StreamChunk struct {
	Content   string
	Err       error
	Completed bool
}

// Client wraps the OpenAI SDK for the three capabilities this service
// consumes: Whisper transcription, streaming speech synthesis, and streaming
// chat completions. Constructed once at bootstrap and passed by reference.
type Client struct {
	client openai.Client
	voice  string
	logger *observability.Logger
}

func NewClient(apiKey string, voice string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if voice == "" {
		voice = "fable"
	}
	return &Client{
		client: openai.NewClient(openaiOption.WithAPIKey(apiKey)),
		voice:  voice,
		logger: logger,
	}, nil
}

// Transcribe sends WAV-framed audio to the Whisper API and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	file := openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav")
	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  file,
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// StreamSpeech synthesizes text and yields raw PCM chunks as they arrive
// from the API. The channel is closed when synthesis finishes, the context
// is cancelled, or the connection drops; it cannot be restarted. Emphasis
// markup is stripped before synthesis.
func (c *Client) StreamSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	cleaned := strings.ReplaceAll(text, "**", "")

	resp, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          ttsModel,
		Input:          cleaned,
		Voice:          openai.AudioSpeechNewParamsVoice(c.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
		Speed:          openai.Float(ttsSpeed),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start speech synthesis: %w", err)
	}

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		for {
			buf := make([]byte, ttsChunkSize)
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					c.logger.Error(ctx, "Speech stream read failed", err)
				}
				return
			}
		}
	}()
	return chunks, nil
}

// StreamChat starts a streaming chat completion and returns a channel of
// incremental content deltas. The final chunk has Completed set.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage) (<-chan StreamChunk, error) {
	params := openai.ChatCompletionNewParams{
		Model:    chatModel,
		Messages: toOpenAIMessages(messages),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case chunks <- StreamChunk{Content: delta}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			c.logger.Error(ctx, "Chat stream failed", err)
			chunks <- StreamChunk{Err: fmt.Errorf("failed to stream chat completion: %w", err)}
			return
		}
		chunks <- StreamChunk{Completed: true}
	}()
	return chunks, nil
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
