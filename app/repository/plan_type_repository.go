package repository

import (
	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
)

// planTypeRepository implements the PlanTypeRepository interface
type planTypeRepository struct {
	db *gorm.DB
}

// NewPlanTypeRepository creates a new plan type repository instance
func NewPlanTypeRepository(db *gorm.DB) PlanTypeRepository {
	return &planTypeRepository{db: db}
}

// GetByID retrieves a plan type by its ID
func (r *planTypeRepository) GetByID(id uint) (*models.PlanType, error) {
	var plan models.PlanType
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByCode retrieves a plan type by its unique code
func (r *planTypeRepository) GetByCode(code string) (*models.PlanType, error) {
	var plan models.PlanType
	err := r.db.Where("code = ?", code).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns purchasable plans ordered by price ascending
func (r *planTypeRepository) ListActive() ([]models.PlanType, error) {
	var plans []models.PlanType
	err := r.db.Where("is_active = ?", true).Order("price_bs ASC").Find(&plans).Error
	return plans, err
}
