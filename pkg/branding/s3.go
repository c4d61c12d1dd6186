package branding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geoguard/geoguard/pkg/apperr"
)

var tracer = otel.Tracer("github.com/geoguard/geoguard/pkg/branding")

// MaxLogoSize is the largest logo accepted, in bytes
const MaxLogoSize = 2 * 1024 * 1024

var (
	ErrUnsupportedType = apperr.New(apperr.KindInvalid, "logo_unsupported_type", "Logos must be PNG, JPEG, SVG or WebP images.")
	ErrTooLarge        = apperr.New(apperr.KindInvalid, "logo_too_large", "Logos must be 2 MB or smaller.")
	ErrEmpty           = apperr.New(apperr.KindInvalid, "logo_empty", "The uploaded logo is empty.")
)

var extensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/svg+xml": "svg",
	"image/webp":    "webp",
}

// LogoStore stores tenant logos and returns the URL they are served from
type LogoStore interface {
	Upload(ctx context.Context, tenantID string, content []byte, contentType string) (string, error)
	Delete(ctx context.Context, logoURL string) error
}

// S3Config holds object storage settings
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	// PublicBaseURL prefixes object keys in returned URLs; defaults to endpoint/bucket
	PublicBaseURL string
}

// objectAPI is the subset of *s3.Client the logo store calls
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3LogoStore keeps logos in an S3 compatible bucket under logos/<tenant>/
type S3LogoStore struct {
	client  objectAPI
	bucket  string
	baseURL string
}

// NewS3LogoStore creates a new S3 backed logo store
func NewS3LogoStore(ctx context.Context, cfg S3Config) (*S3LogoStore, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Use static credentials (for MinIO or AWS with explicit keys)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		// Use default credential chain (IAM roles, env vars, etc.)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return newS3LogoStore(client, cfg), nil
}

func newS3LogoStore(client objectAPI, cfg S3Config) *S3LogoStore {
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
		}
		baseURL = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3LogoStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload stores a logo under a content addressed key and returns its public URL
func (s *S3LogoStore) Upload(ctx context.Context, tenantID string, content []byte, contentType string) (string, error) {
	ext, err := checkLogo(content, contentType)
	if err != nil {
		return "", err
	}

	key := logoKey(tenantID, content, ext)
	ctx, span := tracer.Start(ctx, "branding.Upload",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
			attribute.Int("content.size", len(content)),
		),
	)
	defer span.End()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(content),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		Metadata:     map[string]string{"tenant-id": tenantID},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload logo")
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// Delete removes a logo previously returned by Upload. URLs from elsewhere are ignored.
func (s *S3LogoStore) Delete(ctx context.Context, logoURL string) error {
	key, ok := strings.CutPrefix(logoURL, s.baseURL+"/")
	if !ok || !strings.HasPrefix(key, "logos/") {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete logo: %w", err)
	}
	return nil
}

// HealthCheck verifies S3 connectivity
func (s *S3LogoStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

func checkLogo(content []byte, contentType string) (string, error) {
	if len(content) == 0 {
		return "", ErrEmpty
	}
	if len(content) > MaxLogoSize {
		return "", ErrTooLarge
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := extensions[mediaType]
	if !ok {
		return "", ErrUnsupportedType
	}
	// SVG is text and sniffs as such; binary formats must match their declared type
	if mediaType != "image/svg+xml" && http.DetectContentType(content) != mediaType {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

func logoKey(tenantID string, content []byte, ext string) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("logos/%s/%s.%s", tenantID, hex.EncodeToString(hash[:])[:16], ext)
}

func createBucketIfNotExists(ctx context.Context, client objectAPI, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil && !isBucketAlreadyExistsError(err) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isBucketAlreadyExistsError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return true
		}
	}
	return false
}
