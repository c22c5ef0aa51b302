package billing

import (
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing sync service.
type Repository interface {
	Transaction(fn func(Repository) error) error
	ResolveCustomerLink(externalCustomerID string) (*models.BillingCustomerLink, error)
	GetBillingRecordByUserID(userID uint) (*models.BillingRecord, error)
	CreateBillingRecordIfNotExists(rec *models.BillingRecord) (bool, error)
	UpdateBillingRecordGuarded(rec *models.BillingRecord) (bool, error)
	UpsertRecurringGrant(grant *models.EntitlementGrant) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) ResolveCustomerLink(externalCustomerID string) (*models.BillingCustomerLink, error) {
	var link models.BillingCustomerLink
	err := r.db.Where("external_customer_id = ?", externalCustomerID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *gormRepository) GetBillingRecordByUserID(userID uint) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := r.db.Where("user_id = ?", userID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateBillingRecordIfNotExists inserts the first billing record for a user.
// A false return means a concurrent first event already created the row; the
// caller re-reads and takes the guarded-update path instead of surfacing a
// duplicate-key error.
func (r *gormRepository) CreateBillingRecordIfNotExists(rec *models.BillingRecord) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(rec)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// UpdateBillingRecordGuarded applies the event state only if the stored
// watermark is still older than the event. A false return means a newer event
// won the race and this one must be discarded.
func (r *gormRepository) UpdateBillingRecordGuarded(rec *models.BillingRecord) (bool, error) {
	result := r.db.Model(&models.BillingRecord{}).
		Where("user_id = ? AND last_event_time < ?", rec.UserID, rec.LastEventTime).
		Updates(map[string]interface{}{
			"external_customer_id":     rec.ExternalCustomerID,
			"external_subscription_id": rec.ExternalSubscriptionID,
			"status":                   rec.Status,
			"current_period_end":       rec.CurrentPeriodEnd,
			"last_event_time":          rec.LastEventTime,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpsertRecurringGrant creates or extends the single grant tied to a billing
// record. valid_from is deliberately absent from the update set so the start
// of coverage is preserved across renewals.
func (r *gormRepository) UpsertRecurringGrant(grant *models.EntitlementGrant) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "source_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"valid_until",
			"updated_at",
		}),
	}).Create(grant).Error; err != nil {
		return err
	}

	// Ensure ID and preserved valid_from are populated after upsert.
	return r.db.Where("source = ? AND source_id = ?", grant.Source, grant.SourceID).
		First(grant).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
