package transcript

import (
	"context"
	"fmt"
	"os"
)

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath, language string) (string, error)
}

// AudioMethod downloads the audio track and sends it to a speech-to-text
// service.
type AudioMethod struct {
	ytdlp       *YTDLP
	transcriber Transcriber
	language    string
}

func NewAudioMethod(y *YTDLP, t Transcriber, language string) *AudioMethod {
	return &AudioMethod{ytdlp: y, transcriber: t, language: language}
}

func (m *AudioMethod) Name() string {
	return MethodAudioTranscription
}

func (m *AudioMethod) Fetch(ctx context.Context, itemID string) (string, error) {
	dir, err := os.MkdirTemp("", "insightd-audio-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path, err := m.ytdlp.Audio(ctx, itemID, dir)
	if err != nil {
		return "", err
	}
	return m.transcriber.Transcribe(ctx, path, m.language)
}
