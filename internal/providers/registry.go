package providers

import (
	"context"
	"sort"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/workerpool"
)

const (
	CapabilityTranscribe = "transcribe"
	CapabilityTranslate  = "translate"
	CapabilitySynthesize = "synthesize"
	CapabilityEmbed      = "embed"
)

// Params is what a builder sees. Config may be a per-request copy carrying
// caller overrides.
type Params struct {
	Config *config.Config
	Pool   *workerpool.Pool
}

type (
	TranscriberBuilder func(ctx context.Context, p Params) (Transcriber, error)
	TranslatorBuilder  func(ctx context.Context, p Params) (Translator, error)
	SynthesizerBuilder func(ctx context.Context, p Params) (Synthesizer, error)
	EmbedderBuilder    func(ctx context.Context, p Params) (Embedder, error)
)

// Definition captures the metadata required to register a provider kind.
// A kind implements only the capabilities whose builder is set.
type Definition struct {
	Name         string
	Aliases      []string
	Description  string
	Capabilities []string

	Transcriber TranscriberBuilder
	Translator  TranslatorBuilder
	Synthesizer SynthesizerBuilder
	Embedder    EmbedderBuilder
}

var defaultDefinitions = map[string]Definition{}

// RegisterDefinition stores a provider definition so factories can resolve builders by name.
func RegisterDefinition(def Definition) {
	def = normalizeDefinition(def)
	if defaultDefinitions == nil {
		defaultDefinitions = make(map[string]Definition)
	}
	defaultDefinitions[def.Name] = def
}

func normalizeDefinition(def Definition) Definition {
	def.Name = strings.ToLower(strings.TrimSpace(def.Name))
	if def.Name == "" {
		panic("providers: definition name required")
	}
	if def.Transcriber == nil && def.Translator == nil && def.Synthesizer == nil && def.Embedder == nil {
		panic("providers: definition " + def.Name + " has no builders")
	}
	if def.Description == "" {
		def.Description = def.Name
	}
	var caps []string
	if def.Transcriber != nil {
		caps = append(caps, CapabilityTranscribe)
	}
	if def.Translator != nil {
		caps = append(caps, CapabilityTranslate)
	}
	if def.Synthesizer != nil {
		caps = append(caps, CapabilitySynthesize)
	}
	if def.Embedder != nil {
		caps = append(caps, CapabilityEmbed)
	}
	sort.Strings(caps)
	def.Capabilities = caps
	return def
}

// DefaultDefinitions returns the registered provider definitions sorted by name (useful for docs/tests).
func DefaultDefinitions() []Definition {
	defs := make([]Definition, 0, len(defaultDefinitions))
	for _, def := range defaultDefinitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

func cloneDefaultDefinitions() map[string]Definition {
	defs := make(map[string]Definition, len(defaultDefinitions))
	for _, def := range defaultDefinitions {
		defs[def.Name] = def
		for _, alias := range def.Aliases {
			defs[strings.ToLower(alias)] = def
		}
	}
	return defs
}

// CloneConfig copies cfg so per-request overrides never leak into the
// shared configuration.
func CloneConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		panic("providers: config is required")
	}
	clone := *cfg
	return &clone
}
