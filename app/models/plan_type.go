package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Billing period units for plan types.
const (
	PlanPeriodDay   = "day"
	PlanPeriodMonth = "month"
	PlanPeriodYear  = "year"
)

// PlanType is immutable reference data describing a purchasable plan.
// Prices are stored in Bs minor units to avoid float errors.
type PlanType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code" validate:"required,min=2,max=50"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	PriceBs   int64     `gorm:"not null" json:"price_bs" validate:"gt=0"`
	Period    string    `gorm:"type:varchar(10);not null;default:'month'" json:"period" validate:"oneof=day month year"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PlanType) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// AddPeriod returns t advanced by one billing period using calendar
// arithmetic, so a month plan bought on Feb 1 runs until Mar 1.
func (p *PlanType) AddPeriod(t time.Time) time.Time {
	switch p.Period {
	case PlanPeriodDay:
		return t.AddDate(0, 0, 1)
	case PlanPeriodYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// DefaultPlanTypes seeds the catalog on first start. Kept in sync with the
// SQL migration; the upsert in seeding is keyed by code.
func DefaultPlanTypes() []PlanType {
	return []PlanType{
		{Code: "basico_mensual", Name: "Básico Mensual", PriceBs: 18000, Period: PlanPeriodMonth, IsActive: true},
		{Code: "pro_mensual", Name: "Pro Mensual", PriceBs: 36000, Period: PlanPeriodMonth, IsActive: true},
		{Code: "pro_anual", Name: "Pro Anual", PriceBs: 360000, Period: PlanPeriodYear, IsActive: true},
	}
}
