package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/billing"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/cache"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/database"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/env"
)

// billingWebhookPayload is the provider's event body. Timestamps arrive as
// RFC3339 strings.
type billingWebhookPayload struct {
	CustomerID       string    `json:"customer_id"`
	SubscriptionID   string    `json:"subscription_id"`
	EventTime        time.Time `json:"event_time"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
	Status           string    `json:"status"`
}

// HandleBillingWebhook ingests one recurring-provider event: persist for
// dedup/audit, verify the transport signature, then hand the normalized event
// to the billing sync service. Duplicate, unmapped and stale deliveries all
// answer 200 so the provider stops retrying them.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	eventType := strings.TrimSpace(c.Get("X-Webhook-Event"))
	eventID := firstHeaderValue(c, "X-Webhook-Event-ID", "X-Webhook-Delivery")
	signature := strings.TrimSpace(c.Get("X-Webhook-Signature"))
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := billing.VerifyWebhookSignature(rawBody, signature, secret)
	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderCardSync,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Only successfully processed events short-circuit. An event whose apply
	// failed (or that arrived with a bad signature) is reprocessed from the
	// current delivery, so the provider's retry can complete the lost effect.
	if !created && !stored.NeedsProcessing() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	var payload billingWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	outcome, userID, applyErr := svc.ApplyBillingEvent(ctx, billing.BillingEvent{
		ExternalCustomerID:     payload.CustomerID,
		ExternalSubscriptionID: payload.SubscriptionID,
		EventTime:              payload.EventTime,
		CurrentPeriodEnd:       payload.CurrentPeriodEnd,
		Status:                 payload.Status,
	})
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, applyErr)
	if applyErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_apply_failed"})
	}

	switch outcome {
	case billing.OutcomeUnmapped, billing.OutcomeStale:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true, "outcome": string(outcome)})
	default:
		cache.InvalidateEntitlementStatus(userID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
