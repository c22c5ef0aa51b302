package manualpay

import (
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the manual payment service.
type Repository interface {
	Transaction(fn func(Repository) error) error
	GetPlanType(id uint) (*models.PlanType, error)
	GetManualPayment(id uint) (*models.ManualPayment, error)
	HasPendingDuplicate(userID, planTypeID uint, reference string) (bool, error)
	CreateManualPayment(p *models.ManualPayment) error
	TransitionStatus(id uint, from, to string, reviewedBy uint, reviewedAt time.Time) (bool, error)
	CreateGrantIfNotExists(g *models.EntitlementGrant) (bool, error)
	ListByUser(userID uint, offset, limit int) ([]models.ManualPayment, error)
	ListByStatus(status string, offset, limit int) ([]models.ManualPayment, error)
	ListApprovedWithoutGrant() ([]models.ManualPayment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a manual payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetPlanType(id uint) (*models.PlanType, error) {
	var plan models.PlanType
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetManualPayment(id uint) (*models.ManualPayment, error) {
	var p models.ManualPayment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) HasPendingDuplicate(userID, planTypeID uint, reference string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ManualPayment{}).
		Where("user_id = ? AND plan_type_id = ? AND reference = ? AND status = ?",
			userID, planTypeID, reference, models.ManualPaymentPending).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateManualPayment(p *models.ManualPayment) error {
	return r.db.Create(p).Error
}

// TransitionStatus is the conditional state transition shared by approve and
// reject: the update only applies while the row still holds the expected
// status, so concurrent admin actions serialize at the database.
func (r *gormRepository) TransitionStatus(id uint, from, to string, reviewedBy uint, reviewedAt time.Time) (bool, error) {
	result := r.db.Model(&models.ManualPayment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":      to,
			"reviewed_by": reviewedBy,
			"reviewed_at": reviewedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateGrantIfNotExists inserts the grant unless its (source, source_id)
// pair already exists. The unique index keeps retried approvals to one grant.
func (r *gormRepository) CreateGrantIfNotExists(g *models.EntitlementGrant) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "source_id"},
		},
		DoNothing: true,
	}).Create(g)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListByUser(userID uint, offset, limit int) ([]models.ManualPayment, error) {
	var payments []models.ManualPayment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *gormRepository) ListByStatus(status string, offset, limit int) ([]models.ManualPayment, error) {
	var payments []models.ManualPayment
	err := r.db.Where("status = ?", status).
		Order("created_at ASC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *gormRepository) ListApprovedWithoutGrant() ([]models.ManualPayment, error) {
	var payments []models.ManualPayment
	err := r.db.
		Joins("LEFT JOIN entitlement_grants g ON g.source = ? AND g.source_id = manual_payments.id", models.GrantSourceManual).
		Where("manual_payments.status = ? AND g.id IS NULL", models.ManualPaymentApproved).
		Find(&payments).Error
	return payments, err
}
