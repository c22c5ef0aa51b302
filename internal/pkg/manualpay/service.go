package manualpay

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
)

// Validation and workflow errors surfaced to callers verbatim.
var (
	ErrInvalidAmount       = errors.New("amount_bs must be greater than zero")
	ErrEmptyReference      = errors.New("reference must not be empty")
	ErrUnknownPlan         = errors.New("unknown or inactive plan type")
	ErrDuplicateSubmission = errors.New("a pending payment with this reference already exists")
	ErrPaymentNotFound     = errors.New("manual payment not found")
)

// SubmitInput carries a user's bank-transfer submission. AmountBs arrives as
// a float from JSON and is floor-coerced to minor units.
type SubmitInput struct {
	UserID     uint
	PlanTypeID uint
	AmountBs   float64
	Reference  string
	ProofURL   string
}

// Service runs the manual payment state machine: PENDING submissions,
// administrator approval or rejection (both terminal, both idempotent), and
// the MANUAL entitlement grant created exactly once per approval.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a manual payment service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a manual payment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Submit validates and persists a new PENDING submission. No grant is created
// here; entitlement only changes when an administrator approves.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.ManualPayment, error) {
	_ = ctx
	amount := int64(math.Floor(in.AmountBs))
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return nil, ErrEmptyReference
	}

	var payment *models.ManualPayment
	err := s.repo.Transaction(func(repo Repository) error {
		plan, err := repo.GetPlanType(in.PlanTypeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownPlan
			}
			return err
		}
		if !plan.IsActive {
			return ErrUnknownPlan
		}

		dup, err := repo.HasPendingDuplicate(in.UserID, in.PlanTypeID, reference)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateSubmission
		}

		payment = &models.ManualPayment{
			UserID:     in.UserID,
			PlanTypeID: in.PlanTypeID,
			AmountBs:   amount,
			Reference:  reference,
			ProofURL:   strings.TrimSpace(in.ProofURL),
			Status:     models.ManualPaymentPending,
		}
		if err := payment.Validate(); err != nil {
			return err
		}
		return repo.CreateManualPayment(payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Approve moves a PENDING payment to APPROVED and creates its grant. Calls on
// an already-terminal payment return the current state without mutating
// anything, so double-clicks and webhook-style retries never fail visibly.
// The returned bool reports whether this call performed the transition.
func (s *Service) Approve(ctx context.Context, paymentID, adminID uint) (*models.ManualPayment, bool, error) {
	return s.review(ctx, paymentID, adminID, models.ManualPaymentApproved)
}

// Reject moves a PENDING payment to REJECTED. No grant is ever created on
// this path; like Approve it is an idempotent no-op once terminal.
func (s *Service) Reject(ctx context.Context, paymentID, adminID uint) (*models.ManualPayment, bool, error) {
	return s.review(ctx, paymentID, adminID, models.ManualPaymentRejected)
}

func (s *Service) review(ctx context.Context, paymentID, adminID uint, target string) (*models.ManualPayment, bool, error) {
	_ = ctx
	if paymentID == 0 {
		return nil, false, ErrPaymentNotFound
	}

	var payment *models.ManualPayment
	transitioned := false
	err := s.repo.Transaction(func(repo Repository) error {
		var err error
		payment, err = repo.GetManualPayment(paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		now := s.now()
		transitioned, err = repo.TransitionStatus(paymentID, models.ManualPaymentPending, target, adminID, now)
		if err != nil {
			return err
		}
		if transitioned {
			payment.Status = target
			payment.ReviewedBy = adminID
			payment.ReviewedAt = &now
		} else {
			// Lost the race or retried on a terminal row: report what stands.
			payment, err = repo.GetManualPayment(paymentID)
			if err != nil {
				return err
			}
		}

		if payment.Status != models.ManualPaymentApproved {
			return nil
		}
		// Creating the grant here also heals an earlier crash between the
		// status update and the grant write.
		return s.ensureGrant(repo, payment)
	})
	if err != nil {
		return nil, false, err
	}
	return payment, transitioned, nil
}

// ReconcileMissingGrants is the recovery pass for APPROVED payments whose
// grant write was lost. It returns how many grants were created and the
// affected user ids, so callers can drop those users' cached entitlement
// answers.
func (s *Service) ReconcileMissingGrants(ctx context.Context) (int, []uint, error) {
	_ = ctx
	created := 0
	healed := make(map[uint]struct{})
	err := s.repo.Transaction(func(repo Repository) error {
		payments, err := repo.ListApprovedWithoutGrant()
		if err != nil {
			return err
		}
		for i := range payments {
			before := created
			if err := s.ensureGrantCounting(repo, &payments[i], &created); err != nil {
				return err
			}
			if created > before {
				log.Printf("manualpay: recovered missing grant for payment %d", payments[i].ID)
				healed[payments[i].UserID] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	users := make([]uint, 0, len(healed))
	for userID := range healed {
		users = append(users, userID)
	}
	return created, users, nil
}

func (s *Service) ensureGrant(repo Repository, payment *models.ManualPayment) error {
	n := 0
	return s.ensureGrantCounting(repo, payment, &n)
}

func (s *Service) ensureGrantCounting(repo Repository, payment *models.ManualPayment, created *int) error {
	plan, err := repo.GetPlanType(payment.PlanTypeID)
	if err != nil {
		return err
	}

	validFrom := s.now()
	if payment.ReviewedAt != nil {
		validFrom = *payment.ReviewedAt
	}
	grant := &models.EntitlementGrant{
		UserID:     payment.UserID,
		Source:     models.GrantSourceManual,
		SourceID:   payment.ID,
		ValidFrom:  validFrom,
		ValidUntil: plan.AddPeriod(validFrom),
	}
	inserted, err := repo.CreateGrantIfNotExists(grant)
	if err != nil {
		return err
	}
	if inserted {
		*created++
	}
	return nil
}

// ListUserPayments returns a user's own submissions, newest first.
func (s *Service) ListUserPayments(ctx context.Context, userID uint, offset, limit int) ([]models.ManualPayment, error) {
	_ = ctx
	return s.repo.ListByUser(userID, offset, limit)
}

// ListByStatus returns the admin review queue for one status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status string, offset, limit int) ([]models.ManualPayment, error) {
	_ = ctx
	return s.repo.ListByStatus(status, offset, limit)
}
