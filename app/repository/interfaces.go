package repository

import (
	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the user reads this service performs. Account
// writes live in the platform; only lookup by id and by API key are needed
// here.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
}

// PlanTypeRepository defines the interface for plan catalog operations.
// The catalog is read-only reference data; there is no mutation surface.
type PlanTypeRepository interface {
	GetByID(id uint) (*models.PlanType, error)
	GetByCode(code string) (*models.PlanType, error)
	ListActive() ([]models.PlanType, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	PlanType PlanTypeRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		PlanType: NewPlanTypeRepository(db),
	}
}
