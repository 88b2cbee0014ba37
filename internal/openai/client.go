package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used when no LLM model is configured
	DefaultChatModel = openai.GPT4oMini
	// DefaultTranscriptionModel is the Whisper model used for audio
	DefaultTranscriptionModel = openai.Whisper1
)

var (
	// ErrEmptyPrompt is returned when the prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrEmptyResponse is returned when the model returns no choices
	ErrEmptyResponse = errors.New("completion returned no content")
	// ErrInvalidRequest marks failures that retrying cannot fix
	ErrInvalidRequest = errors.New("invalid request")
)

// ChatAPI defines the interface for single-turn completions
type ChatAPI interface {
	CreateCompletion(ctx context.Context, model, prompt string) (string, error)
}

// TranscriptionAPI defines the interface for audio transcription
type TranscriptionAPI interface {
	Transcribe(ctx context.Context, model, filePath, language string) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	chat         ChatAPI
	audio        TranscriptionAPI
	model        string
	whisperModel string
}

type OpenAIAdapter struct {
	client *openai.Client
}

func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

// CreateCompletion calls the chat completions endpoint with a single user turn
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// Transcribe uploads an audio file to the transcription endpoint
func (a *OpenAIAdapter) Transcribe(ctx context.Context, model, filePath, language string) (string, error) {
	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: filePath,
		Language: language,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	WhisperModel string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	adapter := NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL)
	return newClient(adapter, adapter, cfg.Model, cfg.WhisperModel)
}

func newClient(chat ChatAPI, audio TranscriptionAPI, model, whisperModel string) *Client {
	if model == "" {
		model = DefaultChatModel
	}
	if whisperModel == "" {
		whisperModel = DefaultTranscriptionModel
	}
	return &Client{chat: chat, audio: audio, model: model, whisperModel: whisperModel}
}

// Model returns the chat model id.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt and returns the raw response text. Errors the
// service will repeat on retry are wrapped with ErrInvalidRequest.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	text, err := c.chat.CreateCompletion(ctx, c.model, prompt)
	if err != nil {
		if isInvalidRequest(err) {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	return text, nil
}

// Transcribe returns the text of the audio file at filePath.
func (c *Client) Transcribe(ctx context.Context, filePath, language string) (string, error) {
	if c.audio == nil {
		return "", errors.New("transcription not configured")
	}
	text, err := c.audio.Transcribe(ctx, c.whisperModel, filePath, language)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return text, nil
}

// isInvalidRequest reports client errors other than timeouts and rate limits.
func isInvalidRequest(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return false
	}
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
