package proofstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client stores proof-of-payment files in S3-compatible object storage. It is
// a thin collaborator: the payment workflow only ever sees the returned URL.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a proof storage client.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("proof uploads are disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // S3-compatible services expect path-style URLs
			o.UseAccelerate = false
		}
	})

	return &Client{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// Upload stores a proof file under key and returns its public URL.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload proof %s: %w", key, err)
	}
	return c.ObjectURL(key), nil
}

// ObjectURL returns the public URL for a stored object key.
func (c *Client) ObjectURL(key string) string {
	if c.config.PublicBaseURL != "" {
		return strings.TrimRight(c.config.PublicBaseURL, "/") + "/" + key
	}
	if c.config.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.config.EndpointURL, "/"), c.config.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.config.BucketName, c.config.Region, key)
}
