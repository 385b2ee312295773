package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ncecere/open_voice_gateway/internal/config"
)

// Lease is a provider scoped to one request. Ad-hoc leases own their
// provider and release it exactly once; singleton leases never release.
// Kind names the registered kind an ad-hoc lease was built from and is
// empty for singletons.
type Lease[T Releaser] struct {
	Provider T
	AdHoc    bool
	Kind     string

	once sync.Once
	err  error
}

func singleton[T Releaser](p T) *Lease[T] { return &Lease[T]{Provider: p} }

func adHoc[T Releaser](kind string, p T) *Lease[T] {
	return &Lease[T]{Provider: p, AdHoc: true, Kind: kind}
}

// Release is safe to call repeatedly and on a nil lease.
func (l *Lease[T]) Release() error {
	if l == nil || !l.AdHoc {
		return nil
	}
	l.once.Do(func() {
		l.err = l.Provider.Release()
	})
	return l.err
}

// TranslatorOverrides are the per-request translation knobs.
type TranslatorOverrides struct {
	Provider  string
	Model     string
	APIURL    string
	APIKey    string
	OllamaURL string
	DeepLFree bool
}

// SynthesizerOverrides are the per-request synthesis knobs.
type SynthesizerOverrides struct {
	Provider          string
	Voice             string
	ChatterboxURL     string
	ElevenLabsKey     string
	ElevenLabsModel   string
	ElevenLabsVoiceID string
}

// Resolver picks the provider for one request: a fresh client when the
// caller supplied connection overrides, otherwise the shared singleton.
type Resolver struct {
	factory *Factory
	set     *Set
}

func NewResolver(factory *Factory, set *Set) *Resolver {
	if set == nil {
		set = &Set{}
	}
	return &Resolver{factory: factory, set: set}
}

func (r *Resolver) Set() *Set { return r.set }

// Translator applies, first match wins: openai+api_url, deepl+api_key,
// ollama_url, then the singleton.
func (r *Resolver) Translator(ctx context.Context, o TranslatorOverrides) (*Lease[Translator], error) {
	provider := strings.ToLower(strings.TrimSpace(o.Provider))
	switch {
	case provider == "openai" && strings.TrimSpace(o.APIURL) != "":
		cfg := CloneConfig(r.factory.Config())
		cfg.Providers.OpenAI.BaseURL = strings.TrimSpace(o.APIURL)
		cfg.Providers.OpenAI.APIKey = strings.TrimSpace(o.APIKey)
		if m := strings.TrimSpace(o.Model); m != "" {
			cfg.Providers.OpenAI.ChatModel = m
		}
		return r.adHocTranslator(ctx, "openai", cfg)
	case provider == "deepl" && strings.TrimSpace(o.APIKey) != "":
		cfg := CloneConfig(r.factory.Config())
		cfg.Providers.DeepL.APIKey = strings.TrimSpace(o.APIKey)
		cfg.Providers.DeepL.Free = o.DeepLFree
		return r.adHocTranslator(ctx, "deepl", cfg)
	case strings.TrimSpace(o.OllamaURL) != "":
		cfg := CloneConfig(r.factory.Config())
		cfg.Providers.Ollama.URL = strings.TrimRight(strings.TrimSpace(o.OllamaURL), "/")
		if m := strings.TrimSpace(o.Model); m != "" {
			cfg.Providers.Ollama.Model = m
		}
		return r.adHocTranslator(ctx, "ollama", cfg)
	}
	if r.set.Translator == nil {
		return nil, fmt.Errorf("%w: translate", ErrProviderUnavailable)
	}
	return singleton(r.set.Translator), nil
}

func (r *Resolver) adHocTranslator(ctx context.Context, kind string, cfg *config.Config) (*Lease[Translator], error) {
	t, err := r.factory.Translator(ctx, kind, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s translator: %v", ErrProviderUnavailable, kind, err)
	}
	return adHoc(kind, t), nil
}

// Synthesizer builds a fresh chatterbox or elevenlabs client when asked for
// by name; anything else uses the singleton, with the voice passed per call.
func (r *Resolver) Synthesizer(ctx context.Context, o SynthesizerOverrides) (*Lease[Synthesizer], error) {
	switch strings.ToLower(strings.TrimSpace(o.Provider)) {
	case "chatterbox", "chatterbox-multilingual":
		cfg := CloneConfig(r.factory.Config())
		if u := strings.TrimSpace(o.ChatterboxURL); u != "" {
			cfg.Providers.Chatterbox.URL = u
		}
		if v := strings.TrimSpace(o.Voice); v != "" {
			cfg.Providers.Chatterbox.Voice = v
		}
		return r.adHocSynthesizer(ctx, "chatterbox", cfg)
	case "elevenlabs":
		cfg := CloneConfig(r.factory.Config())
		if k := strings.TrimSpace(o.ElevenLabsKey); k != "" {
			cfg.Providers.ElevenLabs.APIKey = k
		}
		if m := strings.TrimSpace(o.ElevenLabsModel); m != "" {
			cfg.Providers.ElevenLabs.Model = m
		}
		if v := strings.TrimSpace(o.ElevenLabsVoiceID); v != "" {
			cfg.Providers.ElevenLabs.VoiceID = v
		}
		return r.adHocSynthesizer(ctx, "elevenlabs", cfg)
	}
	if r.set.Synthesizer == nil {
		return nil, fmt.Errorf("%w: tts", ErrProviderUnavailable)
	}
	return singleton(r.set.Synthesizer), nil
}

func (r *Resolver) adHocSynthesizer(ctx context.Context, kind string, cfg *config.Config) (*Lease[Synthesizer], error) {
	s, err := r.factory.Synthesizer(ctx, kind, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s synthesizer: %v", ErrProviderUnavailable, kind, err)
	}
	return adHoc(kind, s), nil
}

// Transcriber always returns the singleton.
func (r *Resolver) Transcriber() (*Lease[Transcriber], error) {
	if r.set.Transcriber == nil {
		return nil, fmt.Errorf("%w: stt", ErrProviderUnavailable)
	}
	return singleton(r.set.Transcriber), nil
}

// Embedder returns the singleton or nil.
func (r *Resolver) Embedder() Embedder { return r.set.Embedder }

// VoiceLibrary returns the voice-managing synthesizer: the singleton when it
// manages voices itself, otherwise a fresh chatterbox client when a
// chatterbox URL is configured. Call release when done.
func (r *Resolver) VoiceLibrary(ctx context.Context) (lib VoiceLibrary, release func(), err error) {
	if lib, ok := r.set.Synthesizer.(VoiceLibrary); ok {
		return lib, func() {}, nil
	}
	if r.factory == nil || strings.TrimSpace(r.factory.Config().Providers.Chatterbox.URL) == "" {
		return nil, nil, fmt.Errorf("%w: voice library requires providers.chatterbox.url", ErrProviderUnavailable)
	}
	s, err := r.factory.Synthesizer(ctx, "chatterbox", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: chatterbox: %v", ErrProviderUnavailable, err)
	}
	lease := adHoc("chatterbox", s)
	lib, ok := s.(VoiceLibrary)
	if !ok {
		_ = lease.Release()
		return nil, nil, fmt.Errorf("%w: chatterbox cannot manage voices", ErrProviderUnavailable)
	}
	return lib, func() { _ = lease.Release() }, nil
}
