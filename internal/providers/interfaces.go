package providers

import (
	"context"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

// Releaser frees whatever a provider holds. Implementations must tolerate
// repeated calls.
type Releaser interface {
	Release() error
}

type Transcriber interface {
	Releaser
	Transcribe(ctx context.Context, audio []byte, languageHint string) (models.Transcription, error)
}

// Translator returns "" for empty or whitespace-only input without calling
// upstream.
type Translator interface {
	Releaser
	Translate(ctx context.Context, req models.TranslateRequest) (string, error)
}

type Synthesizer interface {
	Releaser
	Synthesize(ctx context.Context, req models.SynthesisRequest) (models.Audio, error)
}

type Embedder interface {
	Releaser
	Embed(ctx context.Context, text string) ([]float32, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type VoiceLister interface {
	Voices(ctx context.Context) ([]models.Voice, error)
}

// VoiceLibrary is implemented by synthesizers that manage cloned voices.
type VoiceLibrary interface {
	VoiceLister
	UploadVoice(ctx context.Context, name string, audio []byte, language string) (map[string]any, error)
	DeleteVoice(ctx context.Context, name string) (map[string]any, error)
	Languages(ctx context.Context) ([]string, error)
}
