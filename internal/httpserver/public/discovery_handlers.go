package public

import (
	"io"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/httpserver/httputil"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/providers"
)

const ownedBy = "open-voice-gateway"

var voiceNamePattern = regexp.MustCompile(`^[\w\-]+$`)

type discoveryHandler struct {
	container *app.Container
}

func (h *discoveryHandler) models(c *fiber.Ctx) error {
	p := h.container.Config.Providers
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || strings.EqualFold(id, "none") || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if strings.EqualFold(p.STT, "whisper") {
		add("whisper-" + p.Whisper.Model)
	} else {
		add(p.STT)
	}
	switch strings.ToLower(p.Translate) {
	case "local", "ollama":
		add("ollama/" + p.Ollama.Model)
	default:
		add(p.Translate)
	}
	if h.container.Providers.Synthesizer != nil {
		add(p.TTS)
	}
	if strings.TrimSpace(p.Chatterbox.URL) != "" {
		add("chatterbox")
		add("chatterbox-multilingual")
	}

	list := models.ModelList{Object: "list", Data: make([]models.ModelObject, 0, len(ids))}
	for _, id := range ids {
		list.Data = append(list.Data, models.ModelObject{ID: id, Object: "model", OwnedBy: ownedBy})
	}
	return c.JSON(list)
}

func (h *discoveryHandler) health(c *fiber.Ctx) error {
	report := h.container.HealthMon.Check(userContext(c))
	return c.JSON(models.HealthResponse{
		Status:    report.Status,
		Version:   h.container.Config.Server.Version,
		Providers: report.Providers,
	})
}

func (h *discoveryHandler) config(c *fiber.Ctx) error {
	cfg := h.container.Config
	return c.JSON(fiber.Map{
		"stt_provider":        cfg.Providers.STT,
		"translate_provider":  cfg.Providers.Translate,
		"tts_provider":        cfg.Providers.TTS,
		"embeddings_provider": cfg.Providers.Embeddings,
		"whisper_model":       cfg.Providers.Whisper.Model,
		"ollama_model":        cfg.Providers.Ollama.Model,
		"piper_voice":         cfg.Providers.Piper.Voice,
		"history_enabled":     h.container.History != nil,
		"search_enabled":      h.container.Search != nil,
	})
}

// voices lists the singleton synthesizer's voices followed by the voice
// library's. Unreachable providers contribute nothing.
func (h *discoveryHandler) voices(c *fiber.Ctx) error {
	ctx := userContext(c)
	all := []models.Voice{}

	synth := h.container.Providers.Synthesizer
	if lister, ok := synth.(providers.VoiceLister); ok {
		if _, isLibrary := synth.(providers.VoiceLibrary); !isLibrary {
			if vs, err := lister.Voices(ctx); err == nil {
				all = append(all, vs...)
			} else {
				h.container.Logger.Debug("list voices failed", "error", err)
			}
		}
	}

	if lib, release, err := h.container.Resolver.VoiceLibrary(ctx); err == nil {
		defer release()
		if vs, err := lib.Voices(ctx); err == nil {
			all = append(all, vs...)
		} else {
			h.container.Logger.Debug("list library voices failed", "error", err)
		}
	}
	return c.JSON(models.VoicesResponse{Voices: all})
}

func (h *discoveryHandler) uploadVoice(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if !voiceNamePattern.MatchString(name) {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Invalid voice name")
	}
	src, err := uploadedFile(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "file is required")
	}
	defer src.Close()

	max := h.container.Config.Audio.MaxUploadBytes()
	data, err := io.ReadAll(io.LimitReader(src, max+1))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "failed to read file")
	}
	if int64(len(data)) > max {
		return httputil.WriteError(c, fiber.StatusRequestEntityTooLarge, "File too large")
	}

	ctx := userContext(c)
	lib, release, err := h.container.Resolver.VoiceLibrary(ctx)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, "voice library unavailable")
	}
	defer release()

	result, err := lib.UploadVoice(ctx, name, data, strings.TrimSpace(c.FormValue("language")))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, err.Error())
	}
	message := "Voice uploaded"
	if m, ok := result["message"].(string); ok && m != "" {
		message = m
	}
	return c.JSON(fiber.Map{"success": true, "name": name, "message": message})
}

func (h *discoveryHandler) deleteVoice(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	if !voiceNamePattern.MatchString(name) {
		return httputil.WriteError(c, fiber.StatusBadRequest, "Invalid voice name")
	}
	ctx := userContext(c)
	lib, release, err := h.container.Resolver.VoiceLibrary(ctx)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, "voice library unavailable")
	}
	defer release()

	if _, err := lib.DeleteVoice(ctx, name); err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "name": name})
}

func (h *discoveryHandler) languages(c *fiber.Ctx) error {
	ctx := userContext(c)
	langs := []string{}
	if lib, release, err := h.container.Resolver.VoiceLibrary(ctx); err == nil {
		defer release()
		if got, err := lib.Languages(ctx); err == nil && got != nil {
			langs = got
		}
	}
	return c.JSON(models.LanguagesResponse{Languages: langs})
}
