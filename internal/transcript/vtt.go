package transcript

import (
	"fmt"
	"io"
	"strings"

	"github.com/asticode/go-astisub"
)

// ParseVTT flattens WebVTT captions to plain text. Auto captions repeat the
// previous line while the next one scrolls in, so consecutive duplicates
// are dropped.
func ParseVTT(r io.Reader) (string, error) {
	subs, err := astisub.ReadFromWebVTT(r)
	if err != nil {
		return "", fmt.Errorf("parse webvtt: %w", err)
	}

	var (
		parts []string
		last  string
	)
	for _, item := range subs.Items {
		for _, line := range item.Lines {
			text := strings.Join(strings.Fields(line.String()), " ")
			if text == "" || text == last {
				continue
			}
			parts = append(parts, text)
			last = text
		}
	}
	return strings.Join(parts, " "), nil
}
