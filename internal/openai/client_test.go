package openai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatAPI is a mock for the chat completion API
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateCompletion(ctx context.Context, model, prompt string) (string, error) {
	args := m.Called(ctx, model, prompt)
	return args.String(0), args.Error(1)
}

// MockTranscriptionAPI is a mock for the audio transcription API
type MockTranscriptionAPI struct {
	mock.Mock
}

func (m *MockTranscriptionAPI) Transcribe(ctx context.Context, model, filePath, language string) (string, error) {
	args := m.Called(ctx, model, filePath, language)
	return args.String(0), args.Error(1)
}

func TestClient_Complete_Success(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newClient(mockAPI, nil, "gpt-test", "")

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, "gpt-test", "Summarize this").Return(`{"primary_topic":"x"}`, nil)

	text, err := client.Complete(ctx, "Summarize this")

	assert.NoError(t, err)
	assert.Equal(t, `{"primary_topic":"x"}`, text)
	assert.Equal(t, "gpt-test", client.Model())
	mockAPI.AssertExpectations(t)
}

func TestClient_Complete_EmptyPrompt(t *testing.T) {
	client := NewClient("")

	text, err := client.Complete(context.Background(), "  ")

	assert.Empty(t, text)
	assert.Equal(t, ErrEmptyPrompt, err)
}

func TestClient_Complete_TransientError(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newClient(mockAPI, nil, "", "")

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, DefaultChatModel, "p").
		Return("", &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"})

	_, err := client.Complete(ctx, "p")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidRequest))
	assert.Contains(t, err.Error(), "failed to create completion")
}

func TestClient_Complete_InvalidRequest(t *testing.T) {
	tests := []error{
		&openai.APIError{HTTPStatusCode: 400, Message: "bad prompt"},
		&openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
		&openai.RequestError{HTTPStatusCode: 404, Err: errors.New("no such model")},
	}

	for _, apiErr := range tests {
		mockAPI := new(MockChatAPI)
		client := newClient(mockAPI, nil, "m", "")
		mockAPI.On("CreateCompletion", mock.Anything, "m", "p").Return("", apiErr)

		_, err := client.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidRequest), apiErr.Error())
	}
}

func TestClient_Complete_ServerErrorIsTransient(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newClient(mockAPI, nil, "m", "")
	mockAPI.On("CreateCompletion", mock.Anything, "m", "p").
		Return("", &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"})

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidRequest))
}

func TestClient_Transcribe(t *testing.T) {
	mockAudio := new(MockTranscriptionAPI)
	client := newClient(new(MockChatAPI), mockAudio, "", "")

	ctx := context.Background()
	mockAudio.On("Transcribe", ctx, DefaultTranscriptionModel, "/tmp/a.m4a", "en").Return("hello world", nil)

	text, err := client.Transcribe(ctx, "/tmp/a.m4a", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	mockAudio.On("Transcribe", ctx, DefaultTranscriptionModel, "/tmp/b.m4a", "en").Return("", errors.New("too large"))
	_, err = client.Transcribe(ctx, "/tmp/b.m4a", "en")
	assert.ErrorContains(t, err, "failed to transcribe audio")
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.chat)
	assert.NotNil(t, client.audio)
	assert.Equal(t, DefaultChatModel, client.Model())
}
