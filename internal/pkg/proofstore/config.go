package proofstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/JavierUzcategui/AulaPago/internal/pkg/env"
)

// Config holds the object storage configuration for payment proofs.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Base URL under which stored objects are reachable
	Enabled         bool
}

// LoadConfig loads proof storage configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   env.GetEnv("S3_PUBLIC_BASE_URL", ""),
		Enabled:         env.GetEnv("PROOF_UPLOAD_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when proof uploads are enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when proof uploads are enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when proof uploads are enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if proof uploads are enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates a standardized object key for a payment proof.
func (c *Config) ObjectKey(userID uint, id, fileExtension string, at time.Time) string {
	// Format: proofs/YYYY/MM/<user>/<id>.ext
	return fmt.Sprintf("proofs/%04d/%02d/%d/%s%s", at.Year(), int(at.Month()), userID, id, fileExtension)
}
