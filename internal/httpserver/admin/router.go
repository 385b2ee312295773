package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/open_voice_gateway/internal/app"
)

// Register wires up all /admin routes (token exchange + protected APIs).
func Register(router fiber.Router, container *app.Container) {
	auth := &authHandler{container: container}
	router.Post("/admin/token", auth.token)

	protected := router.Group("/admin", adminAuthMiddleware(container))
	registerOrganizationRoutes(protected, container)
	registerRetentionRoutes(protected, container)
}
