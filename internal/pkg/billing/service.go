package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
)

// GracePeriod is added past a recurring period end before coverage lapses,
// absorbing provider settlement and webhook delivery delay.
const GracePeriod = 24 * time.Hour

// Service ingests recurring-provider billing events and keeps one billing
// record and one RECURRING entitlement grant per user, idempotently and
// order-safely.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ApplyBillingEvent applies one provider event to local state and returns the
// affected user id (0 when unmapped). Delivery is at-least-once and unordered,
// so unmapped and stale events are dropped as non-error outcomes; only storage
// failures surface as errors.
func (s *Service) ApplyBillingEvent(ctx context.Context, event BillingEvent) (ApplyOutcome, uint, error) {
	_ = ctx
	customerID := strings.TrimSpace(event.ExternalCustomerID)
	if customerID == "" || event.EventTime.IsZero() {
		return "", 0, errors.New("external_customer_id and event_time are required")
	}

	outcome := OutcomeApplied
	var userID uint
	err := s.repo.Transaction(func(repo Repository) error {
		link, err := repo.ResolveCustomerLink(customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Expected during provisioning races; the provider will retry.
				log.Printf("billing: dropping event for unmapped customer %s", customerID)
				outcome = OutcomeUnmapped
				return nil
			}
			return err
		}
		userID = link.UserID

		rec, err := repo.GetBillingRecordByUserID(link.UserID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			rec = nil
		}

		status := strings.ToLower(strings.TrimSpace(event.Status))
		if status == "" {
			status = models.BillingStatusActive
		}
		var periodEnd *time.Time
		if !event.CurrentPeriodEnd.IsZero() {
			t := event.CurrentPeriodEnd
			periodEnd = &t
		}

		inserted := false
		if rec == nil {
			cand := &models.BillingRecord{
				UserID:                 link.UserID,
				ExternalCustomerID:     customerID,
				ExternalSubscriptionID: strings.TrimSpace(event.ExternalSubscriptionID),
				Status:                 status,
				CurrentPeriodEnd:       periodEnd,
				LastEventTime:          event.EventTime,
			}
			inserted, err = repo.CreateBillingRecordIfNotExists(cand)
			if err != nil {
				return err
			}
			if inserted {
				rec = cand
			} else {
				// A concurrent first event created the row between our read
				// and write; re-read and fall through to the guarded update.
				rec, err = repo.GetBillingRecordByUserID(link.UserID)
				if err != nil {
					return err
				}
			}
		}

		if !inserted {
			if !event.EventTime.After(rec.LastEventTime) {
				outcome = OutcomeStale
				return nil
			}
			rec.ExternalCustomerID = customerID
			rec.ExternalSubscriptionID = strings.TrimSpace(event.ExternalSubscriptionID)
			rec.Status = status
			rec.CurrentPeriodEnd = periodEnd
			rec.LastEventTime = event.EventTime
			updated, err := repo.UpdateBillingRecordGuarded(rec)
			if err != nil {
				return err
			}
			if !updated {
				// A newer event won the race between our read and write.
				outcome = OutcomeStale
				return nil
			}
		}

		if periodEnd == nil {
			// Nothing derivable for the grant window; the record update alone
			// is the whole effect of this event.
			return nil
		}

		validFrom := rec.CreatedAt
		if validFrom.IsZero() {
			validFrom = s.now()
		}
		grant := &models.EntitlementGrant{
			UserID:     link.UserID,
			Source:     models.GrantSourceRecurring,
			SourceID:   rec.ID,
			ValidFrom:  validFrom,
			ValidUntil: periodEnd.Add(GracePeriod),
		}
		return repo.UpsertRecurringGrant(grant)
	})
	if err != nil {
		return "", 0, err
	}
	return outcome, userID, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
