package public

import (
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/httpserver/httputil"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/pipeline"
	"github.com/ncecere/open_voice_gateway/internal/providers"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

type voiceHandler struct {
	container *app.Container
}

// param reads a multipart form field, falling back to the query string.
func param(c *fiber.Ctx, name string) string {
	if v := strings.TrimSpace(c.FormValue(name)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query(name))
}

type paramError struct{ name string }

func (e paramError) Error() string { return "invalid " + e.name }

func boolParam(c *fiber.Ctx, name string, def bool) (bool, error) {
	raw := param(c, name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, paramError{name}
	}
	return v, nil
}

func floatParam(c *fiber.Ctx, name string) (*float64, error) {
	raw := param(c, name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, paramError{name}
	}
	return &v, nil
}

func intParam(c *fiber.Ctx, name string) (int, error) {
	raw := param(c, name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, paramError{name}
	}
	return v, nil
}

// ttsProvider maps the OpenAI-style model name onto a synthesizer kind.
func ttsProvider(provider, model string) string {
	if provider != "" {
		return provider
	}
	switch strings.ToLower(model) {
	case "chatterbox", "chatterbox-multilingual":
		return "chatterbox"
	}
	return ""
}

func uploadedFile(c *fiber.Ctx) (multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	return fh.Open()
}

func (h *voiceHandler) pipeline(c *fiber.Ctx) error {
	ctx := userContext(c)
	format := strings.ToLower(param(c, "response_format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "audio" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "response_format must be json or audio")
	}

	idemKey := strings.TrimSpace(c.Get(headerIdempotencyKey))
	if format == "json" && idemKey != "" {
		if cached, ok := h.container.Idempotency.Get(ctx, callerIdentity(c), idemKey); ok {
			c.Set(headerReplayed, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}
	}

	req, err := h.pipelineRequest(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	src, err := uploadedFile(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "file is required")
	}
	defer src.Close()
	req.Audio = src

	res, err := h.container.Pipeline.Run(ctx, req)
	if err != nil {
		return httputil.WriteStageError(c, err)
	}

	if format == "audio" && len(res.Audio) > 0 {
		c.Set(fiber.HeaderContentType, models.AudioContentType(res.AudioFormat))
		return c.Send(res.Audio)
	}

	resp := models.PipelineResponse{
		Transcript:  res.Transcript,
		SourceLang:  res.DetectedLanguage,
		Translation: res.Translation,
		AudioFormat: res.AudioFormat,
		Timings:     res.Timings,
	}
	if len(res.Audio) > 0 {
		encoded := base64.StdEncoding.EncodeToString(res.Audio)
		resp.Audio = &encoded
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to encode response")
	}
	if idemKey != "" {
		h.container.Idempotency.Set(ctx, callerIdentity(c), idemKey, body)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func (h *voiceHandler) pipelineRequest(c *fiber.Ctx) (pipeline.Request, error) {
	req := pipeline.Request{
		MaxAudioBytes: h.container.Config.Audio.MaxUploadBytes(),
		SourceLang:    param(c, "source_lang"),
		TargetLang:    param(c, "target_lang"),
		Voice:         param(c, "voice"),
		KeepAlive:     param(c, "ollama_keep_alive"),
		Translator: providers.TranslatorOverrides{
			Provider:  param(c, "provider"),
			Model:     param(c, "model"),
			APIURL:    param(c, "api_url"),
			APIKey:    param(c, "api_key"),
			OllamaURL: param(c, "ollama_url"),
		},
		Synthesizer: providers.SynthesizerOverrides{
			Provider:          ttsProvider(param(c, "tts_provider"), param(c, "tts_model")),
			Voice:             param(c, "voice"),
			ChatterboxURL:     param(c, "chatterbox_url"),
			ElevenLabsKey:     param(c, "elevenlabs_key"),
			ElevenLabsModel:   param(c, "elevenlabs_model"),
			ElevenLabsVoiceID: param(c, "elevenlabs_voice_id"),
		},
	}

	var err error
	if req.Synthesize, err = boolParam(c, "tts", true); err != nil {
		return req, err
	}
	if req.Translator.DeepLFree, err = boolParam(c, "deepl_free", true); err != nil {
		return req, err
	}
	if req.ContextLength, err = intParam(c, "ollama_context_length"); err != nil {
		return req, err
	}
	for name, dst := range map[string]**float64{
		"exaggeration":          &req.Exaggeration,
		"cfg_weight":            &req.CFGWeight,
		"temperature":           &req.Temperature,
		"elevenlabs_stability":  &req.Stability,
		"elevenlabs_similarity": &req.SimilarityBoost,
	} {
		if *dst, err = floatParam(c, name); err != nil {
			return req, err
		}
	}
	if raw := param(c, "session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, paramError{"session_id"}
		}
		req.SessionID = &id
	}
	return req, nil
}

func (h *voiceHandler) transcriptions(c *fiber.Ctx) error {
	src, err := uploadedFile(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "file is required")
	}
	defer src.Close()

	tr, err := h.container.Pipeline.Transcribe(userContext(c), src, h.container.Config.Audio.MaxUploadBytes(), c.FormValue("language"))
	if err != nil {
		return httputil.WriteStageError(c, err)
	}
	return c.JSON(models.TranscriptionResponse{Text: tr.Text})
}

func (h *voiceHandler) speech(c *fiber.Ctx) error {
	var body models.SpeechRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	clip, err := h.container.Pipeline.Synthesize(userContext(c), pipeline.SpeechRequest{
		Text:         body.Input,
		Language:     body.Language,
		Voice:        body.Voice,
		Synthesizer:  providers.SynthesizerOverrides{Provider: ttsProvider("", body.Model), Voice: body.Voice},
		Exaggeration: body.Exaggeration,
		CFGWeight:    body.CFGWeight,
		Temperature:  body.Temperature,
	})
	if err != nil {
		return httputil.WriteStageError(c, err)
	}
	c.Set(fiber.HeaderContentType, models.AudioContentType(clip.Format))
	return c.Send(clip.Data)
}

func (h *voiceHandler) translate(c *fiber.Ctx) error {
	var body models.TranslateBody
	if err := c.BodyParser(&body); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if body.Source == "" {
		body.Source = "auto"
	}
	overrides := providers.TranslatorOverrides{Model: strings.TrimSpace(body.Model)}
	out, err := h.container.Pipeline.Translate(userContext(c), pipeline.TextRequest{
		Text:       body.Text,
		Source:     body.Source,
		Target:     body.Target,
		Translator: overrides,
	})
	if err != nil {
		return httputil.WriteStageError(c, err)
	}
	return c.JSON(models.TranslateResponse{
		Text:           out,
		DetectedSource: body.Source,
		Model:          h.container.Pipeline.ModelUsed(overrides),
	})
}
