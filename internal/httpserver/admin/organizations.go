package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/httpserver/httputil"
	"github.com/ncecere/open_voice_gateway/internal/models"
)

func registerOrganizationRoutes(router fiber.Router, container *app.Container) {
	h := &orgHandler{container: container}
	router.Post("/organizations", h.create)
	router.Get("/organizations/:id", h.get)
}

func registerRetentionRoutes(router fiber.Router, container *app.Container) {
	h := &orgHandler{container: container}
	router.Post("/retention/sweep", h.sweep)
	router.Get("/retention/:org_id", h.getRetention)
	router.Put("/retention/:org_id", h.updateRetention)
}

type orgHandler struct {
	container *app.Container
}

type createOrganizationRequest struct {
	Name                string `json:"name"`
	RetentionPolicy     string `json:"retention_policy"`
	AudioEnabledDefault bool   `json:"audio_enabled_default"`
}

func (h *orgHandler) create(c *fiber.Ctx) error {
	var req createOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	org, err := h.container.Organizations.Create(userContext(c), req.Name, req.RetentionPolicy, req.AudioEnabledDefault)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(org)
}

func (h *orgHandler) get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "organization not found")
	}
	org, err := h.container.Organizations.Get(userContext(c), id)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(org)
}

func (h *orgHandler) getRetention(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("org_id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "organization not found")
	}
	settings, err := h.container.Organizations.GetRetention(userContext(c), id)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(settings)
}

func (h *orgHandler) updateRetention(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("org_id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "organization not found")
	}
	var update models.RetentionUpdate
	if err := c.BodyParser(&update); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	settings, err := h.container.Organizations.UpdateRetention(userContext(c), id, update)
	if err != nil {
		return httputil.WriteServiceError(c, err)
	}
	return c.JSON(settings)
}

// sweep runs the retention sweep immediately instead of waiting for the
// next tick.
func (h *orgHandler) sweep(c *fiber.Ctx) error {
	if h.container.Retention == nil {
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, "history storage is not configured")
	}
	res, err := h.container.Retention.SweepNow(userContext(c))
	if err != nil {
		h.container.Logger.Error("retention sweep failed", "error", err)
		return httputil.WriteError(c, fiber.StatusInternalServerError, "retention sweep failed")
	}
	return c.JSON(res)
}
