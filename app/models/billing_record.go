package models

import "time"

// Recurring billing subscription statuses as reported by the provider.
const (
	BillingStatusActive     = "active"
	BillingStatusTrialing   = "trialing"
	BillingStatusPastDue    = "past_due"
	BillingStatusCanceled   = "canceled"
	BillingStatusIncomplete = "incomplete"
	BillingStatusExpired    = "expired"
	BillingStatusPaused     = "paused"
)

// BillingRecord mirrors the recurring rail's view of a user: one evolving row
// per user, advanced only by provider events that pass the watermark guard.
type BillingRecord struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	ExternalCustomerID     string     `gorm:"type:varchar(191);not null;index" json:"external_customer_id"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);not null;index" json:"external_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	LastEventTime          time.Time  `gorm:"not null" json:"last_event_time"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillingCustomerLink maps the provider's customer id to a local user. Rows
// are written at checkout time by the provider integration; this service only
// reads them to route webhook events.
type BillingCustomerLink struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ExternalCustomerID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_customer_id"`
	UserID             uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
