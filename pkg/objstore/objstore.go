// Package objstore re-hosts ephemeral CDN media on S3-compatible
// storage so cached rows keep working after the upstream URLs expire.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"metacache/pkg/config"
	"metacache/pkg/logger"
)

// Uploader writes downloaded media to an S3-compatible bucket. It is
// idempotent per object key: an existing object is never re-uploaded.
type Uploader struct {
	client        *s3.Client
	httpClient    *http.Client
	bucket        string
	endpoint      string
	publicBaseURL string
	logger        logger.Logger
}

// New creates an uploader from storage configuration. Works against
// AWS S3, MinIO and other S3-compatible backends.
func New(cfg *config.StorageConfig, log logger.Logger) (*Uploader, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage credentials are required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &Uploader{
		client:        client,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		bucket:        cfg.Bucket,
		endpoint:      endpoint,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        log,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist. A bucket we
// already own counts as success.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ObjectKey builds the canonical key for a piece of content.
func ObjectKey(platform, accountID, contentID, ext string) string {
	return fmt.Sprintf("%s/%s/%s%s", platform, accountID, contentID, ext)
}

// Exists reports whether the object is already in the bucket.
func (u *Uploader) Exists(ctx context.Context, key string) bool {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

// Upload writes an object unless it already exists, and returns the
// public URL either way.
func (u *Uploader) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if u.Exists(ctx, key) {
		return u.PublicURL(key), nil
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.logger.DebugWithFields("object uploaded", map[string]interface{}{
		"key":   key,
		"bytes": len(body),
	})
	return u.PublicURL(key), nil
}

// CacheImage downloads an image from its CDN URL and re-hosts it. The
// extension is derived from the response Content-Type.
func (u *Uploader) CacheImage(ctx context.Context, platform, accountID, contentID, srcURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid source url: %w", err)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	key := ObjectKey(platform, accountID, contentID, extForContentType(contentType))

	return u.Upload(ctx, key, contentType, body)
}

// PublicURL returns the address an object is served from.
func (u *Uploader) PublicURL(key string) string {
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.endpoint, "/"), u.bucket, key)
}

func extForContentType(contentType string) string {
	// Strip parameters like "; charset=binary"
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}

	switch strings.TrimSpace(strings.ToLower(contentType)) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".jpg"
	}
}
