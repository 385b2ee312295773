package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers"
	"github.com/ncecere/open_voice_gateway/internal/services/benchmarks"
	"github.com/ncecere/open_voice_gateway/internal/services/history"
)

type fakeSTT struct {
	text, lang string
	err        error
	hint       string
}

func (f *fakeSTT) Transcribe(_ context.Context, audio []byte, hint string) (models.Transcription, error) {
	f.hint = hint
	if f.err != nil {
		return models.Transcription{}, f.err
	}
	return models.Transcription{Text: f.text, Language: f.lang}, nil
}

func (f *fakeSTT) Release() error { return nil }

type fakeTranslator struct {
	mu       sync.Mutex
	err      error
	req      models.TranslateRequest
	releases int
}

func (f *fakeTranslator) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	f.req = req
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return "hello world", nil
}

func (f *fakeTranslator) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

type fakeTTS struct {
	format   string
	err      error
	req      models.SynthesisRequest
	releases int
}

func (f *fakeTTS) Synthesize(_ context.Context, req models.SynthesisRequest) (models.Audio, error) {
	f.req = req
	if f.err != nil {
		return models.Audio{}, f.err
	}
	return models.Audio{Data: []byte("WAVDATA"), Format: f.format}, nil
}

func (f *fakeTTS) Release() error {
	f.releases++
	return nil
}

type fakeResolver struct {
	stt   *fakeSTT
	tr    *fakeTranslator
	tts   *fakeTTS
	adHoc bool
	// trKind and ttsKind are reported on ad-hoc leases.
	trKind  string
	ttsKind string

	ttsErr        error
	translatorReq *providers.TranslatorOverrides
	synthCalls    int
}

func (r *fakeResolver) Transcriber() (*providers.Lease[providers.Transcriber], error) {
	return &providers.Lease[providers.Transcriber]{Provider: r.stt}, nil
}

func (r *fakeResolver) Translator(_ context.Context, o providers.TranslatorOverrides) (*providers.Lease[providers.Translator], error) {
	r.translatorReq = &o
	lease := &providers.Lease[providers.Translator]{Provider: r.tr, AdHoc: r.adHoc}
	if r.adHoc {
		lease.Kind = r.trKind
	}
	return lease, nil
}

func (r *fakeResolver) Synthesizer(_ context.Context, o providers.SynthesizerOverrides) (*providers.Lease[providers.Synthesizer], error) {
	r.synthCalls++
	if r.ttsErr != nil {
		return nil, r.ttsErr
	}
	lease := &providers.Lease[providers.Synthesizer]{Provider: r.tts, AdHoc: o.Provider != ""}
	if lease.AdHoc {
		lease.Kind = r.ttsKind
	}
	return lease, nil
}

type recordingSink struct {
	entries []benchmarks.Entry
	err     error
}

func (s *recordingSink) Record(e benchmarks.Entry) error {
	s.entries = append(s.entries, e)
	return s.err
}

type recordingQueue struct{ jobs []history.Job }

func (q *recordingQueue) Enqueue(job history.Job) bool {
	q.jobs = append(q.jobs, job)
	return true
}

type stageMetrics struct {
	observed []string
	failed   []string
}

func (m *stageMetrics) ObserveStage(stage, provider string, _ time.Duration) {
	m.observed = append(m.observed, stage+"/"+provider)
}

func (m *stageMetrics) StageFailed(stage, kind string) {
	m.failed = append(m.failed, stage+"/"+kind)
}

type harness struct {
	orch     *Orchestrator
	resolver *fakeResolver
	sink     *recordingSink
	queue    *recordingQueue
	metrics  *stageMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		resolver: &fakeResolver{
			stt: &fakeSTT{text: "hallo welt", lang: "de"},
			tr:  &fakeTranslator{},
			tts: &fakeTTS{format: "wav"},
		},
		sink:    &recordingSink{},
		queue:   &recordingQueue{},
		metrics: &stageMetrics{},
	}
	orch, err := New(Options{
		Resolver:   h.resolver,
		Benchmarks: h.sink,
		History:    h.queue,
		Metrics:    h.metrics,
		Labels:     Labels{STTProvider: "whisper-small", TranslateKind: "local", OllamaModel: "ministral:3b", TTSKind: "piper"},
	})
	require.NoError(t, err)

	// Every clock read advances 7ms so stage timings are deterministic.
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	orch.now = func() time.Time {
		clock = clock.Add(7 * time.Millisecond)
		return clock
	}
	h.orch = orch
	return h
}

func audio() *bytes.Reader { return bytes.NewReader([]byte("RIFF....WAVE")) }

func TestRunHappyPathWithSynthesis(t *testing.T) {
	h := newHarness(t)
	h.resolver.adHoc = true
	sid := uuid.New()

	res, err := h.orch.Run(context.Background(), Request{
		Audio:      audio(),
		SourceLang: "de",
		Synthesize: true,
		Voice:      "anna",
		Translator: providers.TranslatorOverrides{OllamaURL: "http://gpu:11434"},
		KeepAlive:  "10m",
		SessionID:  &sid,
	})
	require.NoError(t, err)

	require.Equal(t, "hallo welt", res.Transcript)
	require.Equal(t, "de", res.DetectedLanguage)
	require.Equal(t, "hello world", res.Translation)
	require.Equal(t, []byte("WAVDATA"), res.Audio)
	require.Equal(t, "wav", res.AudioFormat)
	require.Equal(t, "de", h.resolver.stt.hint)

	require.Equal(t, models.TranslateRequest{Text: "hallo welt", Source: "de", Target: "en", KeepAlive: "10m"}, h.resolver.tr.req)
	require.Equal(t, 1, h.resolver.tr.releases)
	require.Equal(t, "anna", h.resolver.tts.req.Voice)
	require.Equal(t, "en", h.resolver.tts.req.Language)
	require.Zero(t, h.resolver.tts.releases, "singleton synthesizer must not be released")

	timings := res.Timings
	require.NotNil(t, timings.TTSMs)
	require.Positive(t, timings.STTMs)
	require.LessOrEqual(t, timings.STTMs+timings.TranslateMs+*timings.TTSMs, timings.TotalMs)

	require.Len(t, h.sink.entries, 1)
	entry := h.sink.entries[0]
	require.Equal(t, "whisper-small", entry.STTProvider)
	require.Equal(t, "ollama/ministral:3b", entry.TranslateProvider)
	require.Equal(t, "piper", entry.TTSProvider)
	require.Equal(t, 10, entry.TextLength)
	require.Equal(t, timings.TotalMs, entry.TotalMs)

	require.Len(t, h.queue.jobs, 1)
	job := h.queue.jobs[0]
	require.Equal(t, sid, job.SessionID)
	require.Equal(t, history.DirectionSource, job.Direction)
	require.Equal(t, []byte("RIFF....WAVE"), job.Audio)
	require.Equal(t, "ministral:3b", job.ModelUsed)
	require.Equal(t, []string{"stt/whisper-small", "translate/ollama/ministral:3b", "tts/piper"}, h.metrics.observed)
}

func TestRunWithoutSynthesisSkipsTTS(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.Run(context.Background(), Request{Audio: audio(), TargetLang: "fr"})
	require.NoError(t, err)
	require.Nil(t, res.Audio)
	require.Nil(t, res.Timings.TTSMs)
	require.Zero(t, h.resolver.synthCalls)
	require.Equal(t, "fr", h.resolver.tr.req.Target)
	require.Empty(t, h.queue.jobs, "no session, no history")
	require.Nil(t, h.sink.entries[0].TTSMs)
}

func TestRunNoSpeechStopsBeforeTranslation(t *testing.T) {
	h := newHarness(t)
	h.resolver.stt.text = "   "

	_, err := h.orch.Run(context.Background(), Request{Audio: audio()})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageSTT, se.Stage)
	require.Equal(t, KindNoSpeech, se.Kind)
	require.Equal(t, http.StatusBadRequest, se.Status())
	require.Equal(t, "No speech detected", se.Error())
	require.Nil(t, h.resolver.translatorReq)
	require.Empty(t, h.sink.entries)
	require.Equal(t, []string{"stt/no_speech"}, h.metrics.failed)
}

func TestRunRejectsBadUploads(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Run(context.Background(), Request{Audio: bytes.NewReader(nil)})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.Status())

	big := bytes.NewReader(bytes.Repeat([]byte{1}, 2*1024*1024+1))
	_, err = h.orch.Run(context.Background(), Request{Audio: big, MaxAudioBytes: 2 * 1024 * 1024})
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusRequestEntityTooLarge, se.Status())
	require.Equal(t, "Audio too large (max 2MB)", se.Error())
}

func TestRunTranslationFailures(t *testing.T) {
	h := newHarness(t)
	h.resolver.adHoc = true
	h.resolver.tr.err = fmt.Errorf("ollama: %w", context.DeadlineExceeded)

	_, err := h.orch.Run(context.Background(), Request{Audio: audio(), Synthesize: true})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageTranslate, se.Stage)
	require.Equal(t, "timeout", se.Error())
	require.Equal(t, http.StatusBadGateway, se.Status())
	require.Equal(t, 1, h.resolver.tr.releases, "ad-hoc translator released on failure")
	require.Zero(t, h.resolver.synthCalls)

	h.resolver.tr.err = errors.New("translation failed: openai-compat 500")
	_, err = h.orch.Run(context.Background(), Request{Audio: audio()})
	require.ErrorAs(t, err, &se)
	require.Equal(t, KindUpstream, se.Kind)
	require.True(t, strings.Contains(se.Error(), "openai-compat 500"))
}

func TestRunSynthesizerUnavailable(t *testing.T) {
	h := newHarness(t)
	h.resolver.ttsErr = fmt.Errorf("%w: tts", providers.ErrProviderUnavailable)

	_, err := h.orch.Run(context.Background(), Request{Audio: audio(), Synthesize: true})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageTTS, se.Stage)
	require.Equal(t, http.StatusServiceUnavailable, se.Status())
	require.ErrorIs(t, err, providers.ErrProviderUnavailable)
}

func TestRunElevenLabsUsesVoiceIDAndMP3(t *testing.T) {
	h := newHarness(t)
	h.resolver.tts.format = ""

	res, err := h.orch.Run(context.Background(), Request{
		Audio:       audio(),
		Synthesize:  true,
		Voice:       "ignored",
		Synthesizer: providers.SynthesizerOverrides{Provider: "elevenlabs", ElevenLabsVoiceID: "21m00Tcm4TlvDq8ikWAM"},
		Translator:  providers.TranslatorOverrides{Provider: "deepl", APIKey: "k"},
	})
	require.NoError(t, err)
	require.Equal(t, "mp3", res.AudioFormat)
	require.Equal(t, "21m00Tcm4TlvDq8ikWAM", h.resolver.tts.req.Voice)
	require.Equal(t, 1, h.resolver.tts.releases)
	require.Equal(t, "elevenlabs", h.sink.entries[0].TTSProvider)
	require.Equal(t, "deepl", h.sink.entries[0].TranslateProvider)
}

func TestRunIgnoresBenchmarkErrors(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("disk full")
	_, err := h.orch.Run(context.Background(), Request{Audio: audio()})
	require.NoError(t, err)
}

func TestModelUsed(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, "ministral:3b", h.orch.modelUsed(Request{}))
	require.Equal(t, "gpt-4o-mini", h.orch.modelUsed(Request{Translator: providers.TranslatorOverrides{Provider: "openai", Model: "gpt-4o-mini"}}))
	require.Equal(t, "deepl", h.orch.modelUsed(Request{Translator: providers.TranslatorOverrides{Provider: "deepl"}}))
}

func TestNewRequiresResolver(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestRunMetricLabelsIgnoreRequestValues(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Run(context.Background(), Request{
		Audio:       audio(),
		Synthesize:  true,
		Translator:  providers.TranslatorOverrides{Provider: "no-such-provider", Model: "x-" + uuid.NewString()},
		Synthesizer: providers.SynthesizerOverrides{},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"stt/whisper-small", "translate/ollama/ministral:3b", "tts/piper"}, h.metrics.observed)
	require.Equal(t, "no-such-provider", h.sink.entries[0].TranslateProvider, "benchmark keeps the requested label")

	h = newHarness(t)
	h.resolver.adHoc = true
	h.resolver.trKind = "openai"
	h.resolver.ttsKind = "elevenlabs"
	_, err = h.orch.Run(context.Background(), Request{
		Audio:       audio(),
		Synthesize:  true,
		Translator:  providers.TranslatorOverrides{Provider: "OpenAI", Model: "gpt-" + uuid.NewString(), APIURL: "http://llm"},
		Synthesizer: providers.SynthesizerOverrides{Provider: "ElevenLabs", ElevenLabsVoiceID: "v"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"stt/whisper-small", "translate/openai", "tts/elevenlabs"}, h.metrics.observed)
}

func TestRunCanceledReleasesAdHocTranslatorOnce(t *testing.T) {
	h := newHarness(t)
	h.resolver.adHoc = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Run(ctx, Request{Audio: audio(), Synthesize: true})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageTranslate, se.Stage)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, h.resolver.tr.releases)
	require.Zero(t, h.resolver.synthCalls)
	require.Empty(t, h.sink.entries)
}

func TestRunSynthesisFailureReleasesAdHocSynthesizer(t *testing.T) {
	h := newHarness(t)
	h.resolver.tts.err = errors.New("chatterbox: 500 Internal Server Error")

	_, err := h.orch.Run(context.Background(), Request{
		Audio:       audio(),
		Synthesize:  true,
		Synthesizer: providers.SynthesizerOverrides{Provider: "chatterbox", ChatterboxURL: "http://tts:4123"},
	})
	var se *StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, StageTTS, se.Stage)
	require.Equal(t, KindUpstream, se.Kind)
	require.Equal(t, 1, h.resolver.tts.releases)
	require.Equal(t, []string{"tts/upstream"}, h.metrics.failed)
	require.Empty(t, h.queue.jobs)
}
