package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/JavierUzcategui/AulaPago/app/repository"
)

// HandleListPlans returns the purchasable plan catalog, price ascending.
func HandleListPlans(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetPlanTypeRepository()
	plans, err := repo.ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plans"})
	}

	items := make([]fiber.Map, 0, len(plans))
	for _, p := range plans {
		items = append(items, fiber.Map{
			"id":       p.ID,
			"code":     p.Code,
			"name":     p.Name,
			"price_bs": p.PriceBs,
			"period":   p.Period,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"plans": items})
}
