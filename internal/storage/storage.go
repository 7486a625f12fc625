// Package storage issues presigned S3 URLs for files uploaded by clients.
// Objects never pass through the API process.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

var ErrDisabled = apperr.InvalidState("attachment storage is not configured")

// PresignedURL is a time-limited request the client performs itself.
type PresignedURL struct {
	URL       string      `json:"url"`
	Method    string      `json:"method"`
	Headers   http.Header `json:"headers,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Presigner is what the rest of the code needs from object storage.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (*PresignedURL, error)
	PresignGet(ctx context.Context, key string) (*PresignedURL, error)
}

type S3 struct {
	bucket  string
	presign *s3.PresignClient
	ttl     time.Duration
	now     func() time.Time
}

func New(client *s3.Client, bucket string, ttl time.Duration) *S3 {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3{bucket: bucket, presign: s3.NewPresignClient(client), ttl: ttl, now: time.Now}
}

// Open builds a client from the default AWS credential chain. A custom
// endpoint switches to path-style addressing for MinIO and friends.
func Open(ctx context.Context, cfg config.StorageConfig) (*S3, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("aws config load: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.PresignTTL), nil
}

func (s *S3) PresignPut(ctx context.Context, key, contentType string) (*PresignedURL, error) {
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	return &PresignedURL{URL: req.URL, Method: req.Method, Headers: req.SignedHeader, ExpiresAt: s.now().Add(s.ttl)}, nil
}

func (s *S3) PresignGet(ctx context.Context, key string) (*PresignedURL, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get %s: %w", key, err)
	}
	return &PresignedURL{URL: req.URL, Method: req.Method, ExpiresAt: s.now().Add(s.ttl)}, nil
}

// Disabled stands in when no bucket is configured.
type Disabled struct{}

func (Disabled) PresignPut(context.Context, string, string) (*PresignedURL, error) {
	return nil, ErrDisabled
}

func (Disabled) PresignGet(context.Context, string) (*PresignedURL, error) {
	return nil, ErrDisabled
}
