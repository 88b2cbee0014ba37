package transcript

import (
	"context"
	"fmt"
	"os"
)

// CaptionMethod fetches platform captions through yt-dlp.
type CaptionMethod struct {
	ytdlp    *YTDLP
	language string
	auto     bool
}

// NewAutoCaptions uses machine-generated captions.
func NewAutoCaptions(y *YTDLP, language string) *CaptionMethod {
	return &CaptionMethod{ytdlp: y, language: language, auto: true}
}

// NewManualCaptions uses creator-uploaded captions.
func NewManualCaptions(y *YTDLP, language string) *CaptionMethod {
	return &CaptionMethod{ytdlp: y, language: language}
}

func (m *CaptionMethod) Name() string {
	if m.auto {
		return MethodAutoCaptions
	}
	return MethodManualCaptions
}

func (m *CaptionMethod) Fetch(ctx context.Context, itemID string) (string, error) {
	dir, err := os.MkdirTemp("", "insightd-subs-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path, err := m.ytdlp.Subtitles(ctx, itemID, m.language, dir, m.auto)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open subtitles: %w", err)
	}
	defer f.Close()

	return ParseVTT(f)
}
