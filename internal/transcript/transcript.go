// Package transcript turns a content item into plain transcript text,
// trying extraction methods in order until one yields usable text.
package transcript

import (
	"context"
	"errors"
	"strings"

	"github.com/cloo-solutions/insightd/internal/domain"
	"go.uber.org/zap"
)

// Method names accepted in TRANSCRIPT_METHODS.
const (
	MethodAutoCaptions       = "auto_captions"
	MethodManualCaptions     = "manual_captions"
	MethodAudioTranscription = "audio_transcription"
)

var (
	// ErrTranscriptsDisabled means the platform refuses captions for the item
	ErrTranscriptsDisabled = errors.New("transcripts disabled for item")
	// ErrTranscriptNotFound means no transcript exists for the requested method
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// Method fetches raw transcript text for an item.
type Method interface {
	Name() string
	Fetch(ctx context.Context, itemID string) (string, error)
}

// Extractor runs methods in a fixed preference order.
type Extractor struct {
	methods  map[string]Method
	order    []string
	maxChars int
	language string
	logger   *zap.Logger
}

// Options configures an Extractor.
type Options struct {
	Order    []string
	MaxChars int
	Language string
}

func NewExtractor(methods []Method, opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]Method, len(methods))
	order := make([]string, 0, len(methods))
	for _, m := range methods {
		byName[m.Name()] = m
		order = append(order, m.Name())
	}
	if len(opts.Order) > 0 {
		order = opts.Order
	}
	return &Extractor{
		methods:  byName,
		order:    order,
		maxChars: opts.MaxChars,
		language: opts.Language,
		logger:   logger,
	}
}

// Extract tries the configured order.
func (e *Extractor) Extract(ctx context.Context, itemID string) (*domain.TranscriptResult, bool) {
	return e.ExtractWith(ctx, itemID, e.order)
}

// ExtractWith tries the named methods in order and returns the first usable
// transcript. Usability is judged on the full text, before truncation.
func (e *Extractor) ExtractWith(ctx context.Context, itemID string, names []string) (*domain.TranscriptResult, bool) {
	for _, name := range names {
		if ctx.Err() != nil {
			return nil, false
		}

		name = strings.TrimSpace(name)
		method, ok := e.methods[name]
		if !ok {
			e.logger.Warn("unknown transcript method", zap.String("method", name))
			continue
		}

		text, err := method.Fetch(ctx, itemID)
		if err != nil {
			e.logFailure(itemID, name, err)
			continue
		}
		if !domain.UsableTranscript(text) {
			e.logger.Debug("transcript too short",
				zap.String("item", itemID),
				zap.String("method", name),
				zap.Int("chars", len(text)))
			continue
		}

		return domain.NewTranscriptResult(text, name, e.language, e.maxChars), true
	}

	e.logger.Debug("no usable transcript", zap.String("item", itemID))
	return nil, false
}

func (e *Extractor) logFailure(itemID, method string, err error) {
	switch {
	case errors.Is(err, ErrTranscriptNotFound), errors.Is(err, ErrTranscriptsDisabled):
		e.logger.Debug("transcript method unavailable",
			zap.String("item", itemID),
			zap.String("method", method),
			zap.Error(err))
	default:
		e.logger.Warn("transcript method failed",
			zap.String("item", itemID),
			zap.String("method", method),
			zap.Error(err))
	}
}
