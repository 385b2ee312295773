package providers

import (
	"context"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/adapters/ollama"
	"github.com/ncecere/open_voice_gateway/internal/adapters/piper"
	"github.com/ncecere/open_voice_gateway/internal/adapters/whisper"
)

const embeddingTimeout = 30 * time.Second

func init() {
	RegisterDefinition(Definition{
		Name:        "whisper",
		Description: "Local faster-whisper transcription (subprocess, worker pool)",
		Transcriber: buildWhisperTranscriber,
	})
	RegisterDefinition(Definition{
		Name:        "piper",
		Description: "Local piper synthesis (subprocess, worker pool)",
		Synthesizer: buildPiperSynthesizer,
	})
	RegisterDefinition(Definition{
		Name:        "ollama",
		Aliases:     []string{"local"},
		Description: "Ollama chat translation and embeddings",
		Translator:  buildOllamaTranslator,
		Embedder:    buildOllamaEmbedder,
	})
}

func buildWhisperTranscriber(_ context.Context, p Params) (Transcriber, error) {
	w := p.Config.Providers.Whisper
	return whisper.New(whisper.Options{
		Python:      w.Python,
		Model:       w.Model,
		Device:      w.Device,
		ComputeType: w.ComputeType,
		Pool:        p.Pool,
	})
}

func buildPiperSynthesizer(_ context.Context, p Params) (Synthesizer, error) {
	pc := p.Config.Providers.Piper
	return piper.New(piper.Options{
		Binary:    pc.Binary,
		Voice:     pc.Voice,
		VoicesDir: pc.VoicesDir,
		Pool:      p.Pool,
	})
}

func buildOllamaTranslator(_ context.Context, p Params) (Translator, error) {
	o := p.Config.Providers.Ollama
	return ollama.New(ollama.Options{
		BaseURL: o.URL,
		Model:   o.Model,
		Timeout: p.Config.Providers.RequestTimeout,
	})
}

func buildOllamaEmbedder(_ context.Context, p Params) (Embedder, error) {
	o := p.Config.Providers.Ollama
	base := o.EmbeddingURL
	if base == "" {
		base = o.URL
	}
	return ollama.New(ollama.Options{
		BaseURL:        base,
		EmbeddingModel: o.EmbeddingModel,
		Timeout:        embeddingTimeout,
	})
}
