package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Manual payment review states. PENDING transitions exactly once into one of
// the terminal states; terminal rows are immutable.
const (
	ManualPaymentPending  = "PENDING"
	ManualPaymentApproved = "APPROVED"
	ManualPaymentRejected = "REJECTED"
)

// ManualPayment is a bank-transfer submission awaiting administrator review.
// The amount is in Bs minor units; the reference is the transfer reference the
// user copied from their bank receipt.
type ManualPayment struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	PlanTypeID uint       `gorm:"not null;index" json:"plan_type_id"`
	AmountBs   int64      `gorm:"not null" json:"amount_bs" validate:"gt=0"`
	Reference  string     `gorm:"type:varchar(191);not null" json:"reference" validate:"required"`
	ProofURL   string     `gorm:"type:varchar(500);default:''" json:"proof_url,omitempty"`
	Status     string     `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_manual_payments_status;index:idx_manual_payments_user_status,priority:2" json:"status"`
	ReviewedBy uint       `gorm:"default:0" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `gorm:"type:timestamp;default:null" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *ManualPayment) Validate() error {
	if strings.TrimSpace(m.Reference) == "" {
		m.Reference = ""
	}
	v := validator.New()

	return v.Struct(m)
}

// IsTerminal reports whether the payment has been reviewed.
func (m *ManualPayment) IsTerminal() bool {
	return m.Status == ManualPaymentApproved || m.Status == ManualPaymentRejected
}
