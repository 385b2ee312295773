package public

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/httpserver/httputil"
	"github.com/ncecere/open_voice_gateway/internal/models"
	"github.com/ncecere/open_voice_gateway/internal/services/benchmarks"
)

type historyHandler struct {
	container *app.Container
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func (h *historyHandler) createSession(c *fiber.Ctx) error {
	var body models.SessionCreate
	if err := c.BodyParser(&body); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	session, err := h.container.Sessions.Create(userContext(c), body)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *historyHandler) listSessions(c *fiber.Ctx) error {
	list, err := h.container.Sessions.List(userContext(c), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(list)
}

func (h *historyHandler) getSession(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "session not found")
	}
	session, err := h.container.Sessions.Get(userContext(c), id)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(session)
}

func (h *historyHandler) updateSession(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "session not found")
	}
	var body models.SessionUpdate
	if err := c.BodyParser(&body); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	session, err := h.container.Sessions.Update(userContext(c), id, body)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(session)
}

func (h *historyHandler) deleteSession(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "session not found")
	}
	if err := h.container.Sessions.Delete(userContext(c), id); err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true, "id": id.String()})
}

func (h *historyHandler) listMessages(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "session not found")
	}
	list, err := h.container.Sessions.ListMessages(userContext(c), id, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(list)
}

func (h *historyHandler) messageAudio(c *fiber.Ctx) error {
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "session not found")
	}
	messageID, ok := uuidParam(c, "messageId")
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "message not found")
	}
	data, err := h.container.Sessions.MessageAudio(userContext(c), sessionID, messageID)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	c.Set(fiber.HeaderContentType, models.AudioContentType(models.AudioFormatOpus))
	return c.Send(data)
}

func (h *historyHandler) search(c *fiber.Ctx) error {
	var body models.SearchRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	resp, err := h.container.Search.Search(userContext(c), body)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(resp)
}

func (h *historyHandler) benchmarks(c *fiber.Ctx) error {
	if h.container.Benchmarks == nil {
		return httputil.WriteError(c, fiber.StatusNotFound, benchmarks.ErrNotFound.Error())
	}
	summary, err := h.container.Benchmarks.Summary(c.Params("day"))
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(summary)
}
