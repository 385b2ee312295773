package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command feeding stdin and returning stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Transcoder compresses stored audio with ffmpeg.
type Transcoder struct {
	ffmpeg string
	run    Runner
}

func NewTranscoder(ffmpegPath string) *Transcoder {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{ffmpeg: ffmpegPath, run: ExecRunner}
}

// WithRunner swaps the process runner, used by tests.
func (t *Transcoder) WithRunner(run Runner) *Transcoder {
	clone := *t
	clone.run = run
	return &clone
}

// EncodeOpus converts any ffmpeg-readable input to 16 kbit/s Opus.
func (t *Transcoder) EncodeOpus(ctx context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, errors.New("ffmpeg: empty input")
	}
	out, err := t.run(ctx, t.ffmpeg, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-c:a", "libopus", "-b:a", "16k",
		"-f", "opus", "pipe:1",
	}, input)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("ffmpeg: produced no output")
	}
	return out, nil
}

// ExecRunner runs the command and folds stderr into the returned error.
func ExecRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %s", name, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
