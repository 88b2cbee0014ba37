package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMethod struct {
	mock.Mock
	name string
}

func (m *MockMethod) Name() string { return m.name }

func (m *MockMethod) Fetch(ctx context.Context, itemID string) (string, error) {
	args := m.Called(ctx, itemID)
	return args.String(0), args.Error(1)
}

var usableText = strings.Repeat("agents share context through files ", 8)

func TestExtractWith_FallsBackAndStops(t *testing.T) {
	a := &MockMethod{name: "A"}
	b := &MockMethod{name: "B"}
	c := &MockMethod{name: "C"}
	a.On("Fetch", mock.Anything, "vid").Return("too short", nil)
	b.On("Fetch", mock.Anything, "vid").Return(usableText, nil)

	e := NewExtractor([]Method{a, b, c}, Options{Language: "en"}, zap.NewNop())
	result, ok := e.ExtractWith(context.Background(), "vid", []string{"A", "B", "C"})

	require.True(t, ok)
	assert.Equal(t, "B", result.MethodUsed)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, strings.TrimSpace(usableText), result.Text)
	a.AssertExpectations(t)
	b.AssertExpectations(t)
	c.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestExtract_UsesConfiguredOrder(t *testing.T) {
	a := &MockMethod{name: MethodAutoCaptions}
	m := &MockMethod{name: MethodManualCaptions}
	m.On("Fetch", mock.Anything, "vid").Return(usableText, nil)

	e := NewExtractor([]Method{a, m}, Options{Order: []string{MethodManualCaptions, MethodAutoCaptions}}, nil)
	result, ok := e.Extract(context.Background(), "vid")

	require.True(t, ok)
	assert.Equal(t, MethodManualCaptions, result.MethodUsed)
	a.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestExtract_ErrorsFallThrough(t *testing.T) {
	a := &MockMethod{name: "A"}
	b := &MockMethod{name: "B"}
	a.On("Fetch", mock.Anything, "vid").Return("", ErrTranscriptsDisabled)
	b.On("Fetch", mock.Anything, "vid").Return("", errors.New("boom"))

	e := NewExtractor([]Method{a, b}, Options{}, zap.NewNop())
	result, ok := e.Extract(context.Background(), "vid")

	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestExtract_TruncatesAfterValidation(t *testing.T) {
	a := &MockMethod{name: "A"}
	a.On("Fetch", mock.Anything, "vid").Return(usableText, nil)

	e := NewExtractor([]Method{a}, Options{MaxChars: 50}, zap.NewNop())
	result, ok := e.Extract(context.Background(), "vid")

	require.True(t, ok)
	assert.True(t, result.Truncated)
	assert.Len(t, []rune(result.Text), 50)
}

func TestExtract_UnknownMethodSkipped(t *testing.T) {
	a := &MockMethod{name: "A"}
	a.On("Fetch", mock.Anything, "vid").Return(usableText, nil)

	e := NewExtractor([]Method{a}, Options{Order: []string{"telepathy", "A"}}, zap.NewNop())
	result, ok := e.Extract(context.Background(), "vid")

	require.True(t, ok)
	assert.Equal(t, "A", result.MethodUsed)
}

func TestExtract_CanceledContext(t *testing.T) {
	a := &MockMethod{name: "A"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExtractor([]Method{a}, Options{}, zap.NewNop())
	_, ok := e.Extract(ctx, "vid")

	assert.False(t, ok)
	a.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}
