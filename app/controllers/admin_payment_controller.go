package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"github.com/JavierUzcategui/AulaPago/app/repository"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/cache"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/database"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/mail"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/manualpay"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/statistics"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/usercontext"
)

// HandleAdminListPayments returns the review queue, defaulting to PENDING.
func HandleAdminListPayments(c *fiber.Ctx) error {
	status := strings.ToUpper(strings.TrimSpace(c.Query("status", models.ManualPaymentPending)))
	switch status {
	case models.ManualPaymentPending, models.ManualPaymentApproved, models.ManualPaymentRejected:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown status filter"})
	}
	offset, limit := parsePagination(c)

	svc := manualpay.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payments, err := svc.ListByStatus(ctx, status, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	items := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		items = append(items, paymentJSON(&payments[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"payments": items})
}

// HandleAdminApprovePayment approves a pending payment. Retries and races on
// an already-reviewed payment answer 200 with the standing terminal state.
func HandleAdminApprovePayment(c *fiber.Ctx) error {
	return handleAdminReview(c, true)
}

// HandleAdminRejectPayment rejects a pending payment; never creates a grant.
func HandleAdminRejectPayment(c *fiber.Ctx) error {
	return handleAdminReview(c, false)
}

func handleAdminReview(c *fiber.Ctx, approve bool) error {
	adminCtx := usercontext.GetUserContext(c)
	paymentID, err := c.ParamsInt("id")
	if err != nil || paymentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid payment id"})
	}

	svc := manualpay.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var payment *models.ManualPayment
	var transitioned bool
	if approve {
		payment, transitioned, err = svc.Approve(ctx, uint(paymentID), adminCtx.UserID)
	} else {
		payment, transitioned, err = svc.Reject(ctx, uint(paymentID), adminCtx.UserID)
	}
	if err != nil {
		if errors.Is(err, manualpay.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Payment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Review failed"})
	}

	if payment.Status == models.ManualPaymentApproved {
		cache.InvalidateEntitlementStatus(payment.UserID)
	}
	if transitioned {
		statistics.ResetCacheUpdateTimer()
		go notifyPaymentReviewed(payment)
	}

	resp := paymentJSON(payment)
	resp["transitioned"] = transitioned
	return c.Status(fiber.StatusOK).JSON(resp)
}

// HandleAdminReconcileGrants runs the recovery pass for approved payments
// whose grant write was lost.
func HandleAdminReconcileGrants(c *fiber.Ctx) error {
	svc := manualpay.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, healedUsers, err := svc.ReconcileMissingGrants(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reconcile failed"})
	}
	for _, userID := range healedUsers {
		cache.InvalidateEntitlementStatus(userID)
	}
	if created > 0 {
		statistics.ResetCacheUpdateTimer()
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "grants_created": created})
}

// notifyPaymentReviewed emails the payer about the review outcome. Runs in a
// goroutine; failures are logged by the mailer and never affect the response.
func notifyPaymentReviewed(payment *models.ManualPayment) {
	repoFactory := repository.GetGlobalFactory()
	user, err := repoFactory.GetUserRepository().GetByID(payment.UserID)
	if err != nil || user == nil {
		return
	}
	plan, err := repoFactory.GetPlanTypeRepository().GetByID(payment.PlanTypeID)
	if err != nil {
		plan = nil
	}
	_ = mail.SendPaymentReviewed(user, payment, plan)
}

// HandleAdminStats returns the cached review-queue and entitlement counters.
func HandleAdminStats(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(statistics.GetStatisticsData())
}

func paymentJSON(p *models.ManualPayment) fiber.Map {
	return fiber.Map{
		"id":           p.ID,
		"user_id":      p.UserID,
		"plan_type_id": p.PlanTypeID,
		"amount_bs":    p.AmountBs,
		"reference":    p.Reference,
		"proof_url":    p.ProofURL,
		"status":       p.Status,
		"reviewed_by":  p.ReviewedBy,
		"reviewed_at":  formatTimePtr(p.ReviewedAt),
		"created_at":   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
