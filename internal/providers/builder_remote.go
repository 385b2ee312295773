package providers

import (
	"context"

	"github.com/ncecere/open_voice_gateway/internal/adapters/chatterbox"
	"github.com/ncecere/open_voice_gateway/internal/adapters/deepl"
	"github.com/ncecere/open_voice_gateway/internal/adapters/elevenlabs"
)

func init() {
	RegisterDefinition(Definition{
		Name:        "deepl",
		Description: "DeepL translation API (free or pro)",
		Translator:  buildDeepLTranslator,
	})
	RegisterDefinition(Definition{
		Name:        "chatterbox",
		Aliases:     []string{"chatterbox-multilingual"},
		Description: "Chatterbox TTS server with voice cloning",
		Synthesizer: buildChatterboxSynthesizer,
	})
	RegisterDefinition(Definition{
		Name:        "elevenlabs",
		Description: "ElevenLabs speech synthesis (mp3)",
		Synthesizer: buildElevenLabsSynthesizer,
	})
}

func buildDeepLTranslator(_ context.Context, p Params) (Translator, error) {
	d := p.Config.Providers.DeepL
	return deepl.New(deepl.Options{APIKey: d.APIKey, Free: d.Free})
}

func buildChatterboxSynthesizer(_ context.Context, p Params) (Synthesizer, error) {
	c := p.Config.Providers.Chatterbox
	return chatterbox.New(chatterbox.Options{
		BaseURL: c.URL,
		Voice:   c.Voice,
		Timeout: p.Config.Providers.RequestTimeout,
	})
}

func buildElevenLabsSynthesizer(_ context.Context, p Params) (Synthesizer, error) {
	e := p.Config.Providers.ElevenLabs
	return elevenlabs.New(elevenlabs.Options{
		APIKey:  e.APIKey,
		Model:   e.Model,
		VoiceID: e.VoiceID,
	})
}
