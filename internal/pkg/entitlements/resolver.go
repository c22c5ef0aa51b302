package entitlements

import (
	"context"
	"log"
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"gorm.io/gorm"
)

// GrantStore is the read side of the grant table. A single Find is a
// consistent snapshot; the resolver never needs cross-user locking.
type GrantStore interface {
	ListGrantsForUser(userID uint) ([]models.EntitlementGrant, error)
}

type gormGrantStore struct {
	db *gorm.DB
}

// NewGrantStore creates a grant store backed by GORM.
func NewGrantStore(db *gorm.DB) GrantStore {
	return &gormGrantStore{db: db}
}

func (s *gormGrantStore) ListGrantsForUser(userID uint) ([]models.EntitlementGrant, error) {
	var grants []models.EntitlementGrant
	err := s.db.Where("user_id = ?", userID).Find(&grants).Error
	return grants, err
}

// Status is the resolved entitlement answer for one user at one instant.
// BestValidUntil is display-only ("expires on ..."); the activity decision is
// strictly window membership over the grant set.
type Status struct {
	IsActive       bool                      `json:"is_active"`
	ActiveGrants   []models.EntitlementGrant `json:"active_grants"`
	BestValidUntil *time.Time                `json:"best_valid_until,omitempty"`
}

// Resolver composes the two payment rails' grants into one answer.
type Resolver struct {
	store GrantStore
}

// NewResolver creates a resolver from an injected grant store.
func NewResolver(store GrantStore) *Resolver {
	return &Resolver{store: store}
}

// NewResolverFromDB creates a resolver from a GORM DB handle.
func NewResolverFromDB(db *gorm.DB) *Resolver {
	return NewResolver(NewGrantStore(db))
}

// Resolve answers whether the user is entitled at instant at. Multiple
// overlapping grants may coexist (a manual grant over a recurring one); any
// covering window is sufficient.
func (r *Resolver) Resolve(ctx context.Context, userID uint, at time.Time) (Status, error) {
	_ = ctx
	grants, err := r.store.ListGrantsForUser(userID)
	if err != nil {
		return Status{}, err
	}

	status := Status{ActiveGrants: make([]models.EntitlementGrant, 0, len(grants))}
	for _, g := range grants {
		if !g.Covers(at) {
			continue
		}
		status.ActiveGrants = append(status.ActiveGrants, g)
		if status.BestValidUntil == nil || g.ValidUntil.After(*status.BestValidUntil) {
			until := g.ValidUntil
			status.BestValidUntil = &until
		}
	}
	status.IsActive = len(status.ActiveGrants) > 0
	return status, nil
}

// IsEntitled is the fail-closed access check: any inability to prove an
// active grant answers false, never an error.
func (r *Resolver) IsEntitled(ctx context.Context, userID uint, at time.Time) bool {
	status, err := r.Resolve(ctx, userID, at)
	if err != nil {
		log.Printf("entitlements: resolve failed for user %d, failing closed: %v", userID, err)
		return false
	}
	return status.IsActive
}
