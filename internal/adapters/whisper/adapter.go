package whisper

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/media"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/workerpool"
)

//go:embed assets/faster_whisper.py
var helperScript []byte

type Options struct {
	Python      string
	Model       string
	Device      string
	ComputeType string
	Pool        *workerpool.Pool
}

// Adapter runs faster-whisper through an embedded python helper. Calls are
// serialized through the shared local worker pool.
type Adapter struct {
	opts Options
	run  media.Runner
}

func New(opts Options) (*Adapter, error) {
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.Model == "" {
		opts.Model = "small"
	}
	if opts.Device == "" {
		opts.Device = "auto"
	}
	if opts.ComputeType == "" {
		opts.ComputeType = "int8"
	}
	return &Adapter{opts: opts, run: media.ExecRunner}, nil
}

// WithRunner swaps the process runner, used by tests.
func (a *Adapter) WithRunner(run media.Runner) *Adapter {
	a.run = run
	return a
}

// Name is the benchmark label, e.g. "whisper-small".
func (a *Adapter) Name() string { return "whisper-" + a.opts.Model }

type helperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe writes audio to a temp file and runs the helper on it. The
// language is the detected one, else the hint, else "unknown".
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, hint string) (models.Transcription, error) {
	if len(audio) == 0 {
		return models.Transcription{}, errors.New("whisper: audio input required")
	}
	var out models.Transcription
	err := a.opts.Pool.Do(ctx, func(ctx context.Context) error {
		res, err := a.transcribe(ctx, audio, hint)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) transcribe(ctx context.Context, audio []byte, hint string) (models.Transcription, error) {
	dir, err := os.MkdirTemp("", "voice-whisper-*")
	if err != nil {
		return models.Transcription{}, fmt.Errorf("whisper temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "faster_whisper.py")
	if err := os.WriteFile(scriptPath, helperScript, 0o600); err != nil {
		return models.Transcription{}, fmt.Errorf("write helper script: %w", err)
	}
	audioPath := filepath.Join(dir, "input.wav")
	if err := os.WriteFile(audioPath, audio, 0o600); err != nil {
		return models.Transcription{}, fmt.Errorf("write audio: %w", err)
	}

	args := []string{scriptPath,
		"--audio", audioPath,
		"--model", a.opts.Model,
		"--device", a.opts.Device,
		"--compute-type", a.opts.ComputeType,
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		args = append(args, "--language", hint)
	}

	raw, err := a.run(ctx, a.opts.Python, args, nil)
	if err != nil {
		return models.Transcription{}, fmt.Errorf("faster-whisper: %w", err)
	}
	var parsed helperOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Transcription{}, fmt.Errorf("parse helper output: %w", err)
	}

	lang := strings.TrimSpace(parsed.Language)
	if lang == "" {
		lang = hint
	}
	if lang == "" {
		lang = "unknown"
	}
	return models.Transcription{Text: strings.TrimSpace(parsed.Text), Language: lang}, nil
}

// HealthCheck verifies the interpreter is on PATH.
func (a *Adapter) HealthCheck(context.Context) error {
	_, err := exec.LookPath(a.opts.Python)
	return err
}

func (a *Adapter) Release() error { return nil }
