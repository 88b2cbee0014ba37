package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// YTDLP drives the yt-dlp binary for subtitle and audio downloads.
type YTDLP struct {
	binary string
	runner Runner
}

func NewYTDLP(binary string, runner Runner) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &YTDLP{binary: binary, runner: runner}
}

func watchURL(itemID string) string {
	return "https://www.youtube.com/watch?v=" + itemID
}

// Subtitles downloads WebVTT subtitles into dir and returns the file path.
// auto selects machine-generated captions instead of uploaded ones.
func (y *YTDLP) Subtitles(ctx context.Context, itemID, language, dir string, auto bool) (string, error) {
	flag := "--write-subs"
	if auto {
		flag = "--write-auto-subs"
	}
	args := []string{
		"--skip-download",
		flag,
		"--sub-langs", language,
		"--sub-format", "vtt",
		"--no-progress",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		watchURL(itemID),
	}

	out, err := y.runner.Run(ctx, y.binary, args...)
	if err != nil {
		return "", classify(out, err)
	}
	if disabled(out) {
		return "", ErrTranscriptsDisabled
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if len(matches) == 0 {
		return "", ErrTranscriptNotFound
	}
	return matches[0], nil
}

// Audio downloads the best audio track into dir and returns the file path.
func (y *YTDLP) Audio(ctx context.Context, itemID, dir string) (string, error) {
	args := []string{
		"-f", "bestaudio",
		"-x", "--audio-format", "m4a",
		"--no-progress",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		watchURL(itemID),
	}

	out, err := y.runner.Run(ctx, y.binary, args...)
	if err != nil {
		return "", classify(out, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasSuffix(entry.Name(), ".part") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", ErrTranscriptNotFound
}

func disabled(out []byte) bool {
	text := strings.ToLower(string(out))
	return strings.Contains(text, "subtitles are disabled") ||
		strings.Contains(text, "transcripts disabled")
}

func classify(out []byte, err error) error {
	if disabled(out) {
		return ErrTranscriptsDisabled
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("yt-dlp exited with %d: %s", exitErr.ExitCode(), msg)
	}
	return fmt.Errorf("yt-dlp: %w", err)
}
