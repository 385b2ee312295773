package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/workerpool"
)

// Factory builds providers from configuration using a registry of definitions.
type Factory struct {
	cfg  *config.Config
	pool *workerpool.Pool
	defs map[string]Definition
}

// NewFactory creates a factory with the default provider registry.
func NewFactory(cfg *config.Config, pool *workerpool.Pool) *Factory {
	return &Factory{cfg: cfg, pool: pool, defs: cloneDefaultDefinitions()}
}

// Register allows tests or callers to override provider definitions.
func (f *Factory) Register(def Definition) {
	def = normalizeDefinition(def)
	if f.defs == nil {
		f.defs = make(map[string]Definition)
	}
	f.defs[def.Name] = def
	for _, alias := range def.Aliases {
		f.defs[strings.ToLower(alias)] = def
	}
}

func (f *Factory) Config() *config.Config { return f.cfg }

func (f *Factory) lookup(kind string) (Definition, error) {
	def, ok := f.defs[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return Definition{}, fmt.Errorf("%w %q", ErrUnknownProvider, kind)
	}
	return def, nil
}

func (f *Factory) params(cfg *config.Config) Params {
	if cfg == nil {
		cfg = f.cfg
	}
	return Params{Config: cfg, Pool: f.pool}
}

// Transcriber builds a transcriber of the given kind. A nil cfg uses the
// factory's configuration.
func (f *Factory) Transcriber(ctx context.Context, kind string, cfg *config.Config) (Transcriber, error) {
	def, err := f.lookup(kind)
	if err != nil {
		return nil, err
	}
	if def.Transcriber == nil {
		return nil, fmt.Errorf("provider %q cannot %s", kind, CapabilityTranscribe)
	}
	provider, err := def.Transcriber(ctx, f.params(cfg))
	if err != nil {
		// Builders may return a typed nil pointer alongside the error.
		return nil, err
	}
	return provider, nil
}

func (f *Factory) Translator(ctx context.Context, kind string, cfg *config.Config) (Translator, error) {
	def, err := f.lookup(kind)
	if err != nil {
		return nil, err
	}
	if def.Translator == nil {
		return nil, fmt.Errorf("provider %q cannot %s", kind, CapabilityTranslate)
	}
	provider, err := def.Translator(ctx, f.params(cfg))
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (f *Factory) Synthesizer(ctx context.Context, kind string, cfg *config.Config) (Synthesizer, error) {
	def, err := f.lookup(kind)
	if err != nil {
		return nil, err
	}
	if def.Synthesizer == nil {
		return nil, fmt.Errorf("provider %q cannot %s", kind, CapabilitySynthesize)
	}
	provider, err := def.Synthesizer(ctx, f.params(cfg))
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (f *Factory) Embedder(ctx context.Context, kind string, cfg *config.Config) (Embedder, error) {
	def, err := f.lookup(kind)
	if err != nil {
		return nil, err
	}
	if def.Embedder == nil {
		return nil, fmt.Errorf("provider %q cannot %s", kind, CapabilityEmbed)
	}
	provider, err := def.Embedder(ctx, f.params(cfg))
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// Set holds the process-wide singleton providers. Synthesizer and Embedder
// may be nil.
type Set struct {
	Transcriber Transcriber
	Translator  Translator
	Synthesizer Synthesizer
	Embedder    Embedder
}

// Build instantiates the configured singletons. STT and translation are
// required; a TTS or embeddings provider that fails to build is logged and
// left nil so the gateway still serves text-only traffic.
func (f *Factory) Build(ctx context.Context, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := f.cfg.Providers
	set := &Set{}

	var err error
	if set.Transcriber, err = f.Transcriber(ctx, p.STT, nil); err != nil {
		return nil, fmt.Errorf("stt provider %q: %w", p.STT, err)
	}
	if set.Translator, err = f.Translator(ctx, p.Translate, nil); err != nil {
		return nil, fmt.Errorf("translate provider %q: %w", p.Translate, err)
	}
	if enabled(p.TTS) {
		if set.Synthesizer, err = f.Synthesizer(ctx, p.TTS, nil); err != nil {
			logger.Warn("tts provider unavailable", "provider", p.TTS, "error", err)
			set.Synthesizer = nil
		}
	}
	if enabled(p.Embeddings) {
		if set.Embedder, err = f.Embedder(ctx, p.Embeddings, nil); err != nil {
			logger.Warn("embeddings provider unavailable", "provider", p.Embeddings, "error", err)
			set.Embedder = nil
		}
	}
	return set, nil
}

// Close releases every singleton.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, r := range []Releaser{s.Transcriber, s.Translator, s.Synthesizer, s.Embedder} {
		if r == nil {
			continue
		}
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func enabled(kind string) bool {
	kind = strings.ToLower(strings.TrimSpace(kind))
	return kind != "" && kind != "none"
}
