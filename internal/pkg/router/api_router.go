package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/JavierUzcategui/AulaPago/app/controllers"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")
	v1.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
	})

	// Public surface: plan catalog and the provider webhook (authenticated by
	// its HMAC signature, not by an API key).
	v1.Get("/plans", controllers.HandleListPlans)
	v1.Post("/billing/webhook", controllers.HandleBillingWebhook)

	// Authenticated user surface.
	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Post("/payments", controllers.HandleSubmitPayment)
	authed.Get("/payments", controllers.HandleListMyPayments)
	authed.Post("/payments/proof", controllers.HandleUploadProof)
	authed.Get("/entitlement", controllers.HandleGetEntitlementStatus)

	// Administrator review surface.
	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.Get("/payments", controllers.HandleAdminListPayments)
	admin.Post("/payments/:id/approve", controllers.HandleAdminApprovePayment)
	admin.Post("/payments/:id/reject", controllers.HandleAdminRejectPayment)
	admin.Post("/payments/reconcile", controllers.HandleAdminReconcileGrants)
	admin.Get("/stats", controllers.HandleAdminStats)
}
