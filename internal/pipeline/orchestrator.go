package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers"
	"github.com/ncecere/open_voice_gateway/internal/services/benchmarks"
	"github.com/ncecere/open_voice_gateway/internal/services/history"
)

const defaultTargetLang = "en"

type Resolver interface {
	Transcriber() (*providers.Lease[providers.Transcriber], error)
	Translator(ctx context.Context, o providers.TranslatorOverrides) (*providers.Lease[providers.Translator], error)
	Synthesizer(ctx context.Context, o providers.SynthesizerOverrides) (*providers.Lease[providers.Synthesizer], error)
}

type BenchmarkSink interface {
	Record(e benchmarks.Entry) error
}

type HistoryQueue interface {
	Enqueue(job history.Job) bool
}

type Metrics interface {
	ObserveStage(stage, provider string, d time.Duration)
	StageFailed(stage, kind string)
}

// Labels name the configured providers in benchmark entries and the
// model_used column.
type Labels struct {
	STTProvider   string
	TranslateKind string
	OllamaModel   string
	TTSKind       string
}

type Options struct {
	Resolver   Resolver
	Benchmarks BenchmarkSink
	// History is nil when history is disabled.
	History HistoryQueue
	Metrics Metrics
	Labels  Labels
	Logger  *slog.Logger
}

// Request is one speech-to-speech run.
type Request struct {
	Audio         io.Reader
	MaxAudioBytes int64
	SourceLang    string
	TargetLang    string

	Synthesize bool
	Voice      string

	Translator  providers.TranslatorOverrides
	Synthesizer providers.SynthesizerOverrides

	KeepAlive     string
	ContextLength int

	Exaggeration    *float64
	CFGWeight       *float64
	Temperature     *float64
	Stability       *float64
	SimilarityBoost *float64

	SessionID *uuid.UUID
}

type Result struct {
	Transcript       string
	DetectedLanguage string
	Translation      string
	Audio            []byte
	AudioFormat      string
	Timings          models.PipelineTimings
}

// Orchestrator runs transcribe, translate and optionally synthesize for
// one request, then reports the run to the benchmark sink and the history
// queue. Neither report can fail the request.
type Orchestrator struct {
	resolver   Resolver
	benchmarks BenchmarkSink
	history    HistoryQueue
	metrics    Metrics
	labels     Labels
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Resolver == nil {
		return nil, errors.New("pipeline: resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		resolver:   opts.Resolver,
		benchmarks: opts.Benchmarks,
		history:    opts.History,
		metrics:    opts.Metrics,
		labels:     opts.Labels,
		logger:     logger,
		tracer:     otel.Tracer("open-voice-gateway/pipeline"),
		now:        time.Now,
	}, nil
}

func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer func() {
		var se *StageError
		if errors.As(err, &se) {
			span.SetAttributes(attribute.String("pipeline.failed_stage", string(se.Stage)))
			span.SetStatus(codes.Error, se.Error())
			o.stageFailed(se)
		}
		span.End()
	}()

	target := strings.TrimSpace(req.TargetLang)
	if target == "" {
		target = defaultTargetLang
	}

	// Transcribing: the stage owns the upload read.
	sttStart := o.now()
	audio, err := readAudio(req.Audio, req.MaxAudioBytes)
	if err != nil {
		return Result{}, err
	}
	transcription, err := o.transcribe(ctx, audio, req.SourceLang)
	if err != nil {
		return Result{}, err
	}
	sttDur := o.now().Sub(sttStart)
	o.observe(StageSTT, o.labels.STTProvider, sttDur)

	text := transcription.Text
	if strings.TrimSpace(text) == "" {
		return Result{}, &StageError{Stage: StageSTT, Kind: KindNoSpeech}
	}
	detected := transcription.Language
	if detected == "" {
		detected = "unknown"
	}

	translateStart := o.now()
	translated, translateKind, err := o.translate(ctx, req, text, detected, target)
	if err != nil {
		return Result{}, err
	}
	translateDur := o.now().Sub(translateStart)
	o.observe(StageTranslate, o.translateMetricLabel(translateKind), translateDur)

	res = Result{
		Transcript:       text,
		DetectedLanguage: detected,
		Translation:      translated,
	}

	if req.Synthesize {
		ttsStart := o.now()
		clip, ttsKind, err := o.synthesize(ctx, req, translated, target)
		if err != nil {
			return Result{}, err
		}
		ttsDur := o.now().Sub(ttsStart)
		o.observe(StageTTS, o.ttsMetricLabel(ttsKind), ttsDur)
		ttsMs := millis(ttsDur)
		res.Audio = clip.Data
		res.AudioFormat = clip.Format
		res.Timings.TTSMs = &ttsMs
	}

	res.Timings.STTMs = millis(sttDur)
	res.Timings.TranslateMs = millis(translateDur)
	res.Timings.TotalMs = millis(o.now().Sub(start))

	o.recordBenchmark(req, res, detected, target)
	o.enqueueHistory(req, res, audio, target)
	return res, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte, hint string) (models.Transcription, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.stt")
	defer span.End()

	lease, err := o.resolver.Transcriber()
	if err != nil {
		return models.Transcription{}, &StageError{Stage: StageSTT, Kind: KindUnavailable, Err: err}
	}
	defer lease.Release()

	tr, err := lease.Provider.Transcribe(ctx, audio, strings.TrimSpace(hint))
	if err != nil {
		span.RecordError(err)
		return models.Transcription{}, upstream(StageSTT, err)
	}
	return tr, nil
}

// translate returns the translation and the registered kind of an ad-hoc
// translator, empty when the singleton served the request.
func (o *Orchestrator) translate(ctx context.Context, req Request, text, source, target string) (string, string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.translate")
	defer span.End()

	lease, err := o.resolver.Translator(ctx, req.Translator)
	if err != nil {
		return "", "", &StageError{Stage: StageTranslate, Kind: KindUnavailable, Err: err}
	}
	defer func() {
		if err := lease.Release(); err != nil {
			o.logger.Debug("pipeline: release translator", slog.String("error", err.Error()))
		}
	}()
	span.SetAttributes(attribute.Bool("provider.ad_hoc", lease.AdHoc))

	out, err := lease.Provider.Translate(ctx, models.TranslateRequest{
		Text:          text,
		Source:        source,
		Target:        target,
		Model:         req.Translator.Model,
		KeepAlive:     req.KeepAlive,
		ContextLength: req.ContextLength,
	})
	if err != nil {
		span.RecordError(err)
		return "", "", upstream(StageTranslate, err)
	}
	return out, lease.Kind, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, req Request, text, target string) (models.Audio, string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.tts")
	defer span.End()

	lease, err := o.resolver.Synthesizer(ctx, req.Synthesizer)
	if err != nil {
		if errors.Is(err, providers.ErrProviderUnavailable) {
			return models.Audio{}, "", &StageError{Stage: StageTTS, Kind: KindUnavailable, Detail: err.Error(), Err: err}
		}
		return models.Audio{}, "", upstream(StageTTS, err)
	}
	defer func() {
		if err := lease.Release(); err != nil {
			o.logger.Debug("pipeline: release synthesizer", slog.String("error", err.Error()))
		}
	}()

	elevenlabs := isElevenLabs(req.Synthesizer.Provider)
	voice := req.Voice
	if elevenlabs {
		voice = req.Synthesizer.ElevenLabsVoiceID
	}
	clip, err := lease.Provider.Synthesize(ctx, models.SynthesisRequest{
		Text:            text,
		Language:        target,
		Voice:           voice,
		Exaggeration:    req.Exaggeration,
		CFGWeight:       req.CFGWeight,
		Temperature:     req.Temperature,
		Stability:       req.Stability,
		SimilarityBoost: req.SimilarityBoost,
	})
	if err != nil {
		span.RecordError(err)
		return models.Audio{}, "", upstream(StageTTS, err)
	}
	if clip.Format == "" {
		clip.Format = models.AudioFormatWAV
		if elevenlabs {
			clip.Format = models.AudioFormatMP3
		}
	}
	return clip, lease.Kind, nil
}

func (o *Orchestrator) recordBenchmark(req Request, res Result, source, target string) {
	if o.benchmarks == nil {
		return
	}
	entry := benchmarks.Entry{
		Timestamp:         o.now().UTC(),
		STTProvider:       o.labels.STTProvider,
		TranslateProvider: o.translateLabel(req),
		TTSProvider:       o.ttsLabel(req),
		SourceLang:        source,
		TargetLang:        target,
		TextLength:        utf8.RuneCountInString(res.Transcript),
		STTMs:             res.Timings.STTMs,
		TranslateMs:       res.Timings.TranslateMs,
		TTSMs:             res.Timings.TTSMs,
		TotalMs:           res.Timings.TotalMs,
	}
	if err := o.benchmarks.Record(entry); err != nil {
		o.logger.Debug("pipeline: benchmark logging failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) enqueueHistory(req Request, res Result, audio []byte, target string) {
	if o.history == nil || req.SessionID == nil {
		return
	}
	o.history.Enqueue(history.Job{
		SessionID:      *req.SessionID,
		Direction:      history.DirectionSource,
		OriginalText:   res.Transcript,
		TranslatedText: res.Translation,
		OriginalLang:   res.DetectedLanguage,
		TranslatedLang: target,
		Audio:          audio,
		AudioRequested: true,
		Timings:        res.Timings,
		ModelUsed:      o.modelUsed(req),
	})
}

func (o *Orchestrator) translateKind(req Request) string {
	if p := strings.TrimSpace(req.Translator.Provider); p != "" {
		return strings.ToLower(p)
	}
	return o.labels.TranslateKind
}

// translateLabel renders local translation as "ollama/<model>".
func (o *Orchestrator) translateLabel(req Request) string {
	kind := o.translateKind(req)
	if kind == "local" {
		model := strings.TrimSpace(req.Translator.Model)
		if model == "" {
			model = o.labels.OllamaModel
		}
		return "ollama/" + model
	}
	return kind
}

func (o *Orchestrator) ttsLabel(req Request) string {
	if p := strings.TrimSpace(req.Synthesizer.Provider); p != "" {
		return strings.ToLower(p)
	}
	return o.labels.TTSKind
}

// Metric labels come from the resolved lease, never from the request, so
// the label set stays bounded by the registered kinds.
func (o *Orchestrator) translateMetricLabel(resolved string) string {
	if resolved != "" {
		return resolved
	}
	if o.labels.TranslateKind == "local" {
		return "ollama/" + o.labels.OllamaModel
	}
	return o.labels.TranslateKind
}

func (o *Orchestrator) ttsMetricLabel(resolved string) string {
	if resolved != "" {
		return resolved
	}
	return o.labels.TTSKind
}

func (o *Orchestrator) modelUsed(req Request) string {
	if m := strings.TrimSpace(req.Translator.Model); m != "" {
		return m
	}
	kind := o.translateKind(req)
	if kind == "local" || kind == "ollama" {
		return o.labels.OllamaModel
	}
	return kind
}

func (o *Orchestrator) observe(stage Stage, provider string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveStage(string(stage), provider, d)
	}
}

func (o *Orchestrator) stageFailed(se *StageError) {
	if o.metrics != nil {
		o.metrics.StageFailed(string(se.Stage), string(se.Kind))
	}
	if se.Kind == KindUpstream || se.Kind == KindUnavailable {
		o.logger.Warn("pipeline: stage failed",
			slog.String("stage", string(se.Stage)),
			slog.String("kind", string(se.Kind)),
			slog.String("error", errorText(se)))
	}
}

func readAudio(r io.Reader, max int64) ([]byte, error) {
	if r == nil {
		return nil, &StageError{Stage: StageSTT, Kind: KindClientInput, Detail: "audio file is required"}
	}
	if max > 0 {
		r = io.LimitReader(r, max+1)
	}
	audio, err := io.ReadAll(r)
	if err != nil {
		return nil, &StageError{Stage: StageSTT, Kind: KindClientInput, Detail: "failed to read audio", Err: err}
	}
	if max > 0 && int64(len(audio)) > max {
		return nil, &StageError{
			Stage:  StageSTT,
			Kind:   KindPayloadTooLarge,
			Detail: fmt.Sprintf("Audio too large (max %dMB)", max/(1024*1024)),
		}
	}
	if len(audio) == 0 {
		return nil, &StageError{Stage: StageSTT, Kind: KindClientInput, Detail: "audio file is empty"}
	}
	return audio, nil
}

func isElevenLabs(provider string) bool {
	return strings.EqualFold(strings.TrimSpace(provider), "elevenlabs")
}

func millis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

func errorText(se *StageError) string {
	if se.Err != nil {
		return se.Err.Error()
	}
	return se.Error()
}
