package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/cache"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/database"
)

const (
	CacheKeyPendingPayments = "statistics:payments:pending"
	CacheKeyApprovedDaily   = "statistics:payments:approved:%s" // Format with date YYYY-MM-DD
	CacheKeyActiveGrants    = "statistics:grants:active"
	CacheKeyUsers           = "statistics:users:total"
	CacheExpiration         = 30 * time.Minute
)

// StatisticsData is the admin dashboard summary.
type StatisticsData struct {
	PendingPayments int `json:"pending_payments"`
	ApprovedToday   int `json:"approved_today"`
	ActiveGrants    int `json:"active_grants"`
	TotalUsers      int `json:"total_users"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached numbers are older than the
// refresh interval.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached numbers when they are stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh from the database.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all counters and stores them in Redis.
func UpdateStatisticsCache() error {
	db := database.GetDB()
	now := time.Now().UTC()

	var pending int64
	if err := db.Model(&models.ManualPayment{}).Where("status = ?", models.ManualPaymentPending).Count(&pending).Error; err != nil {
		log.Printf("Error counting pending payments: %v", err)
		return err
	}

	today := now.Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var approvedToday int64
	if err := db.Model(&models.ManualPayment{}).
		Where("status = ? AND reviewed_at BETWEEN ? AND ?", models.ManualPaymentApproved, todayStart, todayEnd).
		Count(&approvedToday).Error; err != nil {
		log.Printf("Error counting today's approvals: %v", err)
		return err
	}

	var activeGrants int64
	if err := db.Model(&models.EntitlementGrant{}).
		Where("valid_from <= ? AND valid_until >= ?", now, now).
		Count(&activeGrants).Error; err != nil {
		log.Printf("Error counting active grants: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPendingPayments, strconv.FormatInt(pending, 10), CacheExpiration); err != nil {
		return err
	}
	dailyKey := fmt.Sprintf(CacheKeyApprovedDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(approvedToday, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyActiveGrants, strconv.FormatInt(activeGrants, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		return err
	}

	return nil
}

func cachedCount(key string, recount func() (int64, error)) int {
	val, err := cache.Get(key)
	if err != nil {
		count, cerr := recount()
		if cerr != nil {
			log.Printf("Error counting for %s: %v", key, cerr)
			return 0
		}
		if serr := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); serr != nil {
			log.Printf("Error caching %s: %v", key, serr)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetPendingPayments returns the number of payments awaiting review.
func GetPendingPayments() int {
	return cachedCount(CacheKeyPendingPayments, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.ManualPayment{}).
			Where("status = ?", models.ManualPaymentPending).Count(&count).Error
		return count, err
	})
}

// GetApprovedToday returns the number of payments approved today (UTC).
func GetApprovedToday() int {
	today := time.Now().UTC().Format("2006-01-02")
	return cachedCount(fmt.Sprintf(CacheKeyApprovedDaily, today), func() (int64, error) {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)
		var count int64
		err := database.GetDB().Model(&models.ManualPayment{}).
			Where("status = ? AND reviewed_at BETWEEN ? AND ?", models.ManualPaymentApproved, todayStart, todayEnd).
			Count(&count).Error
		return count, err
	})
}

// GetActiveGrants returns the number of grants covering the current instant.
func GetActiveGrants() int {
	return cachedCount(CacheKeyActiveGrants, func() (int64, error) {
		now := time.Now().UTC()
		var count int64
		err := database.GetDB().Model(&models.EntitlementGrant{}).
			Where("valid_from <= ? AND valid_until >= ?", now, now).Count(&count).Error
		return count, err
	})
}

// GetTotalUsers returns the total number of users.
func GetTotalUsers() int {
	return cachedCount(CacheKeyUsers, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.User{}).Count(&count).Error
		return count, err
	})
}

// GetStatisticsData bundles all counters, refreshing the cache when stale.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		PendingPayments: GetPendingPayments(),
		ApprovedToday:   GetApprovedToday(),
		ActiveGrants:    GetActiveGrants(),
		TotalUsers:      GetTotalUsers(),
	}
}
