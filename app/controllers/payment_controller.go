package controllers

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/JavierUzcategui/AulaPago/internal/pkg/database"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/manualpay"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/proofstore"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/usercontext"
)

type submitPaymentRequest struct {
	PlanTypeID uint    `json:"plan_type_id"`
	AmountBs   float64 `json:"amount_bs"`
	Reference  string  `json:"reference"`
	ProofURL   string  `json:"proof_url"`
}

// HandleSubmitPayment accepts a bank-transfer submission from the
// authenticated user and creates a PENDING manual payment.
func HandleSubmitPayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req submitPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	svc := manualpay.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payment, err := svc.Submit(ctx, manualpay.SubmitInput{
		UserID:     userCtx.UserID,
		PlanTypeID: req.PlanTypeID,
		AmountBs:   req.AmountBs,
		Reference:  req.Reference,
		ProofURL:   req.ProofURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, manualpay.ErrInvalidAmount),
			errors.Is(err, manualpay.ErrEmptyReference),
			errors.Is(err, manualpay.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
		case errors.Is(err, manualpay.ErrDuplicateSubmission):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "duplicate_submission", "message": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store payment"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(paymentJSON(payment))
}

// HandleListMyPayments returns the authenticated user's submissions.
func HandleListMyPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := parsePagination(c)

	svc := manualpay.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payments, err := svc.ListUserPayments(ctx, userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	items := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		items = append(items, paymentJSON(&payments[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"payments": items})
}

// HandleUploadProof stores a proof-of-payment file in object storage and
// returns the URL to reference in a subsequent submission.
func HandleUploadProof(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	fileHeader, err := c.FormFile("proof")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing proof file"})
	}

	cfg, err := proofstore.LoadConfig()
	if err != nil || !cfg.IsEnabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "uploads_disabled", "message": "Proof uploads are not configured"})
	}
	client, err := proofstore.NewClient(cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Proof storage unavailable"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unreadable proof file"})
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	key := cfg.ObjectKey(userCtx.UserID, uuid.NewString(), ext, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url, err := client.Upload(ctx, key, contentType, file)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload_failed", "message": "Failed to store proof"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"proof_url": url})
}
