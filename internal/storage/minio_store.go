// internal/storage/minio_store.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/config"
)

var log = logrus.WithField("component", "minio")

// ObjectStore mirrors files written by the daemon to remote storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL *url.URL
	useSSL  bool
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY / MINIO_SECRET_KEY not configured")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// create the bucket unless it already exists
	err = cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := cli.BucketExists(ctx, cfg.Bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("create/check bucket %s: %w", cfg.Bucket, err)
		}
	}

	var u *url.URL
	if cfg.PublicBaseURL != "" {
		u, err = url.Parse(cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid public base url: %w", err)
		}
	}

	log.Infof("connected to endpoint %s, bucket=%s", cfg.Endpoint, cfg.Bucket)

	return &MinioStore{
		client:  cli,
		bucket:  cfg.Bucket,
		baseURL: u,
		useSSL:  cfg.UseSSL,
	}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return PublicURL(s.baseURL, s.scheme(), s.client.EndpointURL().Host, s.bucket, key), nil
}

func (s *MinioStore) scheme() string {
	if s.useSSL {
		return "https"
	}
	return "http"
}

// PublicURL prefers the configured public base, falling back to the raw S3
// endpoint URL.
func PublicURL(base *url.URL, scheme, host, bucket, key string) string {
	if base != nil {
		u := *base
		if u.Path == "" || u.Path == "/" {
			u.Path = "/" + key
		} else {
			u.Path = fmt.Sprintf("%s/%s", strings.TrimSuffix(u.Path, "/"), key)
		}
		return u.String()
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, host, bucket, key)
}

// KeyFor builds prefix/camN/YYYY/MM/DD/<base name> for a saved file.
func KeyFor(prefix string, cameraID int, filename string, at time.Time) string {
	return path.Join(
		strings.Trim(prefix, "/"),
		"cam"+strconv.Itoa(cameraID),
		at.Format("2006/01/02"),
		path.Base(filename),
	)
}
