package models

import "time"

// Grant sources. RECURRING grants track the card-billing rail and are
// upserted as provider events arrive; MANUAL grants are created exactly once
// when an administrator approves a bank-transfer payment.
const (
	GrantSourceRecurring = "RECURRING"
	GrantSourceManual    = "MANUAL"
)

// EntitlementGrant is a persisted time window during which a payment source
// entitles a user. The (source, source_id) unique index is what makes grant
// creation idempotent under retries and concurrent admin actions.
type EntitlementGrant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index:idx_entitlement_grants_user_window,priority:1" json:"user_id"`
	Source     string    `gorm:"type:varchar(16);not null;index:ux_entitlement_grants_source,unique,priority:1" json:"source"`
	SourceID   uint      `gorm:"not null;index:ux_entitlement_grants_source,unique,priority:2" json:"source_id"`
	ValidFrom  time.Time `gorm:"not null;index:idx_entitlement_grants_user_window,priority:2" json:"valid_from"`
	ValidUntil time.Time `gorm:"not null;index:idx_entitlement_grants_user_window,priority:3" json:"valid_until"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Covers reports whether the grant window contains t (boundaries inclusive).
func (g *EntitlementGrant) Covers(t time.Time) bool {
	return !t.Before(g.ValidFrom) && !t.After(g.ValidUntil)
}
