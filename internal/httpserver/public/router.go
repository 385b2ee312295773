package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/open_voice_gateway/internal/app"
)

// Register wires up the public /v1 API. Every route requires an API key
// when keys are configured and is charged against the caller's bucket.
func Register(router fiber.Router, container *app.Container) {
	group := router.Group("/v1", apiKeyAuth(container))
	one := metered(container, app.DefaultCost)

	voice := &voiceHandler{container: container}
	group.Post("/pipeline", metered(container, container.PipelineCost()), voice.pipeline)
	group.Post("/audio/transcriptions", one, voice.transcriptions)
	group.Post("/audio/speech", one, voice.speech)
	group.Post("/translate", one, voice.translate)

	discovery := &discoveryHandler{container: container}
	group.Get("/models", one, discovery.models)
	group.Get("/health", one, discovery.health)
	group.Get("/config", one, discovery.config)
	group.Get("/voices", one, discovery.voices)
	group.Post("/voices", one, discovery.uploadVoice)
	group.Delete("/voices/:name", one, discovery.deleteVoice)
	group.Get("/languages", one, discovery.languages)

	history := &historyHandler{container: container}
	group.Post("/sessions", one, history.createSession)
	group.Get("/sessions", one, history.listSessions)
	group.Get("/sessions/:id", one, history.getSession)
	group.Patch("/sessions/:id", one, history.updateSession)
	group.Delete("/sessions/:id", one, history.deleteSession)
	group.Get("/sessions/:id/messages", one, history.listMessages)
	group.Get("/sessions/:id/messages/:messageId/audio", one, history.messageAudio)
	group.Post("/search", one, history.search)
	group.Get("/benchmarks/:day", one, history.benchmarks)
}
