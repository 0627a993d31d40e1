// Package mirror copies saved files from the data directory to an
// S3-compatible bucket in the background.
package mirror

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for R2/MinIO
	AccessKeyID     string // optional; falls back to the default chain
	SecretAccessKey string
	PathStyle       bool

	// HTTPClient and MaxAttempts override the SDK defaults, mostly for tests.
	HTTPClient  *http.Client
	MaxAttempts int
}

// ConfigFromEnv reads SECTIONS_S3_* variables. ok is false when no bucket
// is configured.
func ConfigFromEnv() (cfg Config, ok bool) {
	cfg = Config{
		Bucket:          strings.TrimSpace(os.Getenv("SECTIONS_S3_BUCKET")),
		Region:          strings.TrimSpace(os.Getenv("SECTIONS_S3_REGION")),
		Endpoint:        strings.TrimSpace(os.Getenv("SECTIONS_S3_ENDPOINT")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("SECTIONS_S3_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("SECTIONS_S3_SECRET_ACCESS_KEY")),
		PathStyle:       strings.EqualFold(os.Getenv("SECTIONS_S3_PATH_STYLE"), "true"),
	}
	return cfg, cfg.Bucket != ""
}

type Client struct {
	s3     *s3.Client
	bucket string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("access key id and secret access key must be set together")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	})
	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

func (c *Client) Bucket() string { return c.bucket }

// PutFile uploads localPath to key.
func (c *Client) PutFile(ctx context.Context, key, localPath string) error {
	key = normalizeObjectKey(key)
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	}
	return "application/octet-stream"
}

func normalizeObjectKey(key string) string {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if key == "." {
		return ""
	}
	return key
}
