package database

import (
	"fmt"
	"log"
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var DB *gorm.DB

const maxRetries = 5
const retryDelay = 5 * time.Second

func SetupDatabase() {
	var err error
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			DB.AutoMigrate(
				&models.User{},
				&models.PlanType{},
				&models.BillingRecord{},
				&models.BillingCustomerLink{},
				&models.BillingWebhookEvent{},
				&models.ManualPayment{},
				&models.EntitlementGrant{},
			)
			seedPlanTypes(DB)

			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retry in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// GetDB returns the shared GORM handle, or nil before SetupDatabase ran.
func GetDB() *gorm.DB {
	return DB
}

// seedPlanTypes inserts the default plan catalog, keyed by code so restarts
// never duplicate rows or overwrite admin price changes.
func seedPlanTypes(db *gorm.DB) {
	plans := models.DefaultPlanTypes()
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&plans).Error; err != nil {
		log.Printf("Failed to seed plan types: %v", err)
	}
}
