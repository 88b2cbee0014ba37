package domain

import (
	"strings"
	"time"
)

const (
	// MinTranscriptWords is the smallest transcript worth analyzing
	MinTranscriptWords = 20
	// MinTranscriptChars is the shortest transcript worth analyzing
	MinTranscriptChars = 100
)

// ContentItem is one discoverable unit of content from a creator
type ContentItem struct {
	ItemID          string
	Title           string
	Description     string
	PublishedAt     time.Time
	DurationSeconds int
	SourceURL       string
}

// WithinDuration reports whether the item length is inside [min, max] seconds.
func (i ContentItem) WithinDuration(min, max int) bool {
	return i.DurationSeconds >= min && i.DurationSeconds <= max
}

// TranscriptResult is the plain text produced by one extraction method
type TranscriptResult struct {
	Text       string
	MethodUsed string
	Language   string
	Truncated  bool
}

// UsableTranscript reports whether text has enough words and characters to analyze.
func UsableTranscript(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < MinTranscriptChars {
		return false
	}
	return len(strings.Fields(trimmed)) >= MinTranscriptWords
}

// NewTranscriptResult builds a result, hard-truncating text to maxChars runes.
// A non-positive maxChars disables the cap.
func NewTranscriptResult(text, method, language string, maxChars int) *TranscriptResult {
	text = strings.TrimSpace(text)
	result := &TranscriptResult{
		Text:       text,
		MethodUsed: method,
		Language:   language,
	}
	if maxChars > 0 {
		runes := []rune(text)
		if len(runes) > maxChars {
			result.Text = string(runes[:maxChars])
			result.Truncated = true
		}
	}
	return result
}
