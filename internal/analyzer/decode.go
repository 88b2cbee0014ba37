package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrNoJSON is returned when a response holds no JSON object.
var ErrNoJSON = errors.New("response contains no JSON object")

// injected fields are owned by the analyzer and ignored if the model sends them.
var injectedFields = []string{"source_item_id", "source_creator_id", "analyzed_at", "model"}

var (
	// fencedBlock matches a code fence whose delimiters sit on their own lines.
	fencedBlock = regexp.MustCompile("(?ms)^[ \t]*```[^\n]*\n(.*?)\n[ \t]*```[ \t]*$")
	// inlineBlock matches ```json{...}``` on a single fence.
	inlineBlock = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*(\\{.*\\})\\s*```$")
)

// ExtractJSON returns the JSON object carried by a model response. A bare
// object is returned as is, so fences inside its strings are left alone.
// Otherwise the first fenced block wins, then the outermost braces.
func ExtractJSON(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := inlineBlock.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	if open, end := strings.IndexByte(trimmed, '{'), strings.LastIndexByte(trimmed, '}'); open >= 0 && end > open {
		return trimmed[open : end+1]
	}
	return trimmed
}

// DecodeInsight parses a model response into an Insight. Presence of the
// required fields is preserved: absent stays nil, an explicit empty list
// stays empty.
func DecodeInsight(response string) (*domain.Insight, error) {
	payload := ExtractJSON(response)
	if payload == "" || (payload[0] != '{') {
		return nil, fmt.Errorf("%w: %s", ErrNoJSON, snippet(payload))
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode response json: %w (payload: %s)", err, snippet(payload))
	}
	for _, key := range injectedFields {
		delete(raw, key)
	}

	var in domain.Insight
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &in,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToSnippetHook,
			stringToTimestampHook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode insight: %w", err)
	}

	if v, ok := raw["target_agents"]; ok && v != nil && in.TargetAgents == nil {
		in.TargetAgents = []string{}
	}
	if v, ok := raw["key_insights"]; ok && v != nil && in.KeyInsights == nil {
		in.KeyInsights = []string{}
	}
	return &in, nil
}

var (
	snippetType   = reflect.TypeOf(domain.CodeSnippet{})
	timestampType = reflect.TypeOf(domain.TimestampReference{})
)

// stringToSnippetHook accepts a bare string where a code snippet object is
// expected.
func stringToSnippetHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != snippetType {
		return data, nil
	}
	return map[string]any{"code": data}, nil
}

// stringToTimestampHook accepts "03:15 intro" style strings.
func stringToTimestampHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timestampType {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	ts, desc, _ := strings.Cut(s, " ")
	desc = strings.TrimLeft(strings.TrimSpace(desc), "-: ")
	return map[string]any{"timestamp": ts, "description": desc}, nil
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 160
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
