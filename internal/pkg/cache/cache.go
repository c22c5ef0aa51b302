package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JavierUzcategui/AulaPago/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the cache server.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// EntitlementStatusKey is the cache key for a user's resolved entitlement
// status. Grant writers delete it after every mutation so status reads stay
// fresh without hitting MySQL on every access check.
func EntitlementStatusKey(userID uint) string {
	return fmt.Sprintf("entitlement:status:%d", userID)
}

// InvalidateEntitlementStatus drops the cached status for a user, best effort.
func InvalidateEntitlementStatus(userID uint) {
	if err := Delete(EntitlementStatusKey(userID)); err != nil && err != redis.Nil {
		log.Printf("Failed to invalidate entitlement cache for user %d: %v", userID, err)
	}
}
