package controllers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"github.com/JavierUzcategui/AulaPago/app/repository"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/cache"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/database"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/entitlements"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/env"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/usercontext"
)

// entitlementStatusTTL bounds cache staleness; grant writers additionally
// invalidate eagerly.
const entitlementStatusTTL = 30 * time.Second

// HandleGetEntitlementStatus answers whether the calling user currently has
// paid access. Resolution fails closed: if the answer cannot be proven the
// response is inactive, never an error.
func HandleGetEntitlementStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	cacheKey := cache.EntitlementStatusKey(userCtx.UserID)
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	resolver := entitlements.NewResolverFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := resolver.Resolve(ctx, userCtx.UserID, time.Now())
	if err != nil {
		log.Printf("entitlement status for user %d failed closed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"is_active": false})
	}

	response := fiber.Map{
		"is_active":   status.IsActive,
		"valid_until": formatTimePtr(status.BestValidUntil),
	}
	if plan := coveringPlanCode(status); plan != "" {
		response["plan"] = plan
	}

	if body, err := json.Marshal(response); err == nil {
		if err := cache.Set(cacheKey, string(body), entitlementStatusTTL); err != nil {
			log.Printf("failed to cache entitlement status for user %d: %v", userCtx.UserID, err)
		}
	}
	return c.Status(fiber.StatusOK).JSON(response)
}

// coveringPlanCode names the plan behind the longest-running active grant,
// for display only. A manual grant knows its plan via the payment; recurring
// coverage maps to the configured recurring plan code.
func coveringPlanCode(status entitlements.Status) string {
	var best *models.EntitlementGrant
	for i := range status.ActiveGrants {
		g := &status.ActiveGrants[i]
		if best == nil || g.ValidUntil.After(best.ValidUntil) {
			best = g
		}
	}
	if best == nil {
		return ""
	}

	switch best.Source {
	case models.GrantSourceManual:
		db := database.GetDB()
		var payment models.ManualPayment
		if err := db.First(&payment, best.SourceID).Error; err != nil {
			return ""
		}
		plan, err := repository.GetGlobalFactory().GetPlanTypeRepository().GetByID(payment.PlanTypeID)
		if err != nil {
			return ""
		}
		return plan.Code
	case models.GrantSourceRecurring:
		return env.GetEnv("RECURRING_PLAN_CODE", "pro_mensual")
	default:
		return ""
	}
}
