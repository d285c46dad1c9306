package objstore

import (
	"context"
	"io"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"
)

type AliyunStore struct {
	bucket *oss.Bucket
}

func NewAliyun(cfg Config) (*AliyunStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "objstore: oss client")
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "objstore: oss bucket")
	}
	return &AliyunStore{bucket: bucket}, nil
}

// The OSS SDK has no context support; ctx is accepted for interface parity.

func (s *AliyunStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	err := s.bucket.PutObject(key, r, oss.ContentType(contentType))
	return errors.Wrapf(err, "objstore: put %s", key)
}

func (s *AliyunStore) Delete(_ context.Context, key string) error {
	return errors.Wrapf(s.bucket.DeleteObject(key), "objstore: delete %s", key)
}

func (s *AliyunStore) DownloadURL(_ context.Context, key string, expires time.Duration) (string, error) {
	u, err := s.bucket.SignURL(key, oss.HTTPGet, int64(expires.Seconds()))
	return u, errors.Wrapf(err, "objstore: sign get %s", key)
}

func (s *AliyunStore) UploadURL(_ context.Context, key, contentType string, expires time.Duration) (string, error) {
	u, err := s.bucket.SignURL(key, oss.HTTPPut, int64(expires.Seconds()), oss.ContentType(contentType))
	return u, errors.Wrapf(err, "objstore: sign put %s", key)
}
