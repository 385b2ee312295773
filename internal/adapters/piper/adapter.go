package piper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/media"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/workerpool"
)

type Options struct {
	Binary    string
	Voice     string
	VoicesDir string
	Pool      *workerpool.Pool
}

// Adapter synthesizes WAV audio with the piper CLI.
type Adapter struct {
	opts Options
	run  media.Runner
}

func New(opts Options) (*Adapter, error) {
	if opts.Binary == "" {
		opts.Binary = "piper"
	}
	if strings.TrimSpace(opts.Voice) == "" {
		return nil, errors.New("piper: voice required")
	}
	return &Adapter{opts: opts, run: media.ExecRunner}, nil
}

// WithRunner swaps the process runner, used by tests.
func (a *Adapter) WithRunner(run media.Runner) *Adapter {
	a.run = run
	return a
}

// modelPath resolves a voice name to its .onnx file. Absolute paths and
// names that already end in .onnx are used as given.
func (a *Adapter) modelPath(voice string) string {
	if filepath.IsAbs(voice) || strings.HasSuffix(voice, ".onnx") {
		return voice
	}
	return filepath.Join(a.opts.VoicesDir, voice+".onnx")
}

func (a *Adapter) Synthesize(ctx context.Context, req models.SynthesisRequest) (models.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return models.Audio{}, errors.New("piper: text required")
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = a.opts.Voice
	}
	var out models.Audio
	err := a.opts.Pool.Do(ctx, func(ctx context.Context) error {
		data, err := a.synthesize(ctx, req.Text, voice)
		out = models.Audio{Data: data, Format: models.AudioFormatWAV}
		return err
	})
	return out, err
}

func (a *Adapter) synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	tempFile, err := os.CreateTemp("", "piper-output-*.wav")
	if err != nil {
		return nil, fmt.Errorf("piper temp file: %w", err)
	}
	tempFile.Close()
	defer os.Remove(tempFile.Name())

	args := []string{"--model", a.modelPath(voice), "--output_file", tempFile.Name()}
	if _, err := a.run(ctx, a.opts.Binary, args, []byte(text)); err != nil {
		return nil, fmt.Errorf("piper (voice=%s): %w", voice, err)
	}
	data, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("piper read output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("piper (voice=%s): produced no audio", voice)
	}
	return data, nil
}

// Voices lists the .onnx models installed in the voices directory.
func (a *Adapter) Voices(context.Context) ([]models.Voice, error) {
	if a.opts.VoicesDir == "" {
		return []models.Voice{{Name: a.opts.Voice, Provider: "piper"}}, nil
	}
	matches, err := filepath.Glob(filepath.Join(a.opts.VoicesDir, "*.onnx"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]models.Voice, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".onnx")
		voice := models.Voice{Name: name, Provider: "piper"}
		// Piper voice names start with the locale, e.g. de_DE-thorsten-high.
		if idx := strings.IndexAny(name, "_-"); idx > 0 {
			lang := name[:idx]
			voice.Language = &lang
		}
		out = append(out, voice)
	}
	return out, nil
}

func (a *Adapter) HealthCheck(context.Context) error {
	_, err := exec.LookPath(a.opts.Binary)
	return err
}

func (a *Adapter) Release() error { return nil }
