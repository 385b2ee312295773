package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers"
)

// TextRequest drives a standalone translation.
type TextRequest struct {
	Text       string
	Source     string
	Target     string
	Translator providers.TranslatorOverrides
}

// SpeechRequest drives a standalone synthesis.
type SpeechRequest struct {
	Text        string
	Language    string
	Voice       string
	Synthesizer providers.SynthesizerOverrides

	Exaggeration *float64
	CFGWeight    *float64
	Temperature  *float64
}

// Transcribe runs only the speech-to-text stage. Blank transcripts are
// returned as-is; only the full pipeline treats them as an error.
func (o *Orchestrator) Transcribe(ctx context.Context, audio io.Reader, maxBytes int64, language string) (tr models.Transcription, err error) {
	defer o.noteFailure(&err)

	data, err := readAudio(audio, maxBytes)
	if err != nil {
		return models.Transcription{}, err
	}
	start := o.now()
	if tr, err = o.transcribe(ctx, data, language); err != nil {
		return models.Transcription{}, err
	}
	o.observe(StageSTT, o.labels.STTProvider, o.now().Sub(start))
	return tr, nil
}

// Translate runs only the translation stage. Source defaults to "auto"
// and target to "en".
func (o *Orchestrator) Translate(ctx context.Context, req TextRequest) (out string, err error) {
	defer o.noteFailure(&err)

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "auto"
	}
	target := strings.TrimSpace(req.Target)
	if target == "" {
		target = defaultTargetLang
	}
	run := Request{Translator: req.Translator}
	start := o.now()
	if out, _, err = o.translate(ctx, run, req.Text, source, target); err != nil {
		return "", err
	}
	o.observe(StageTranslate, o.translateLabel(run), o.now().Sub(start))
	return out, nil
}

// Synthesize runs only the text-to-speech stage.
func (o *Orchestrator) Synthesize(ctx context.Context, req SpeechRequest) (clip models.Audio, err error) {
	defer o.noteFailure(&err)

	if strings.TrimSpace(req.Text) == "" {
		return models.Audio{}, &StageError{Stage: StageTTS, Kind: KindClientInput, Detail: "input is required"}
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = defaultTargetLang
	}
	run := Request{
		Voice:        req.Voice,
		Synthesizer:  req.Synthesizer,
		Exaggeration: req.Exaggeration,
		CFGWeight:    req.CFGWeight,
		Temperature:  req.Temperature,
	}
	start := o.now()
	if clip, _, err = o.synthesize(ctx, run, req.Text, language); err != nil {
		return models.Audio{}, err
	}
	o.observe(StageTTS, o.ttsLabel(run), o.now().Sub(start))
	return clip, nil
}

// ModelUsed reports the translation model a request with these overrides
// would use.
func (o *Orchestrator) ModelUsed(overrides providers.TranslatorOverrides) string {
	return o.modelUsed(Request{Translator: overrides})
}

func (o *Orchestrator) noteFailure(err *error) {
	var se *StageError
	if err != nil && errors.As(*err, &se) {
		o.stageFailed(se)
	}
}
