// Package storage issues presigned upload URLs for product images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"storefront/internal/config"
)

// ErrUnsupportedContentType is returned for uploads that are not images.
var ErrUnsupportedContentType = errors.New("unsupported image content type")

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadURL is a presigned PUT target for one product image.
type UploadURL struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	ImageURL  string    `json:"imageUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// S3ImageStorage presigns uploads against any S3-compatible bucket
// (AWS S3, MinIO, LocalStack).
type S3ImageStorage struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	endpoint          string
	region            string
	usePathStyle      bool
	publicBaseURL     string
	presignExpiration time.Duration
	now               func() time.Time
	logger            *zap.Logger
}

// S3ImageStorageOption is a functional option for configuring S3ImageStorage
type S3ImageStorageOption func(*S3ImageStorage)

// WithLogger sets a custom logger for S3ImageStorage
func WithLogger(logger *zap.Logger) S3ImageStorageOption {
	return func(s *S3ImageStorage) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3ImageStorageOption {
	return func(s *S3ImageStorage) {
		s.presignExpiration = d
	}
}

// NewS3ImageStorage creates the storage from configuration. Static keys are
// optional; without them the default AWS credential chain is used.
func NewS3ImageStorage(ctx context.Context, cfg config.StorageConfig, opts ...S3ImageStorageOption) (*S3ImageStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("storage access key and secret key must be set together")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	storage := &S3ImageStorage{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		endpoint:          endpoint,
		region:            region,
		usePathStyle:      cfg.UsePathStyle,
		publicBaseURL:     strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		presignExpiration: cfg.PresignExpiration,
		now:               time.Now,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(storage)
	}
	if storage.presignExpiration <= 0 {
		storage.presignExpiration = 15 * time.Minute
	}
	storage.logger = storage.logger.Named("storage")
	return storage, nil
}

// PresignProductImage returns a PUT URL for a new image of the product and
// the public URL the image will have once uploaded.
func (s *S3ImageStorage) PresignProductImage(ctx context.Context, productID, contentType string) (*UploadURL, error) {
	if productID == "" {
		return nil, errors.New("product id is required")
	}
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	key := fmt.Sprintf("products/%s/%d%s", productID, s.now().UnixNano(), ext)
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		s.logger.Error("Failed to presign image upload", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &UploadURL{
		UploadURL: req.URL,
		Key:       key,
		ImageURL:  s.PublicURL(key),
		ExpiresAt: s.now().Add(s.presignExpiration),
	}, nil
}

// PublicURL is the address clients use to read an uploaded object.
func (s *S3ImageStorage) PublicURL(key string) string {
	switch {
	case s.publicBaseURL != "":
		return s.publicBaseURL + "/" + key
	case s.endpoint != "" && s.usePathStyle:
		return strings.TrimSuffix(s.endpoint, "/") + "/" + s.bucket + "/" + key
	case s.endpoint != "":
		u, err := url.Parse(s.endpoint)
		if err != nil {
			return key
		}
		u.Host = s.bucket + "." + u.Host
		u.Path = "/" + key
		return u.String()
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
}

// Ping checks that the bucket is reachable.
func (s *S3ImageStorage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, err)
	}
	return nil
}

// GetBucket returns the bucket name
func (s *S3ImageStorage) GetBucket() string {
	return s.bucket
}
