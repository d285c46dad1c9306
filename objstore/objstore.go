// Package objstore stores uploaded files in S3-compatible or Aliyun OSS buckets.
package objstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// KeyPrefix is the namespace for every object written by the service.
const KeyPrefix = "uploads/"

// Interface is implemented by every storage provider.
type Interface interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// DownloadURL returns a presigned GET URL.
	DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	// UploadURL returns a presigned PUT URL the browser can upload to directly.
	UploadURL(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func New(ctx context.Context, cfg Config) (Interface, error) {
	switch strings.ToLower(cfg.Provider) {
	case "aliyun", "oss":
		return NewAliyun(cfg)
	case "minio", "s3", "":
		return NewMinio(ctx, cfg)
	default:
		return nil, errors.Errorf("objstore: unknown provider %q", cfg.Provider)
	}
}

// NewKey builds an object key: uploads/YYYYMMDD/<uuid><ext>.
func NewKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s%s/%s%s", KeyPrefix, now.Format("20060102"), uuid.New().String(), ext)
}

// ValidKey reports whether key is inside the upload namespace.
func ValidKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefix) && !strings.Contains(key, "..")
}
