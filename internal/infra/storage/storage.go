// Package storage keeps uploaded question images either on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Local writes images under a directory served at urlPrefix.
type Local struct {
	dir       string
	urlPrefix string
}

func NewLocal(dir, urlPrefix string) *Local {
	return &Local{dir: dir, urlPrefix: urlPrefix}
}

// Dir is the directory images are written to.
func (l *Local) Dir() string { return l.dir }

func (l *Local) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	dst := filepath.Join(l.dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	return l.urlPrefix + "/" + name, nil
}

// MinioConfig locates the bucket images are stored in.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Minio stores images as objects in a MinIO or S3 bucket.
type Minio struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinio connects to the endpoint and creates the bucket when it does not exist yet.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Minio{client: client, bucket: cfg.Bucket, publicURL: cfg.PublicURL}, nil
}

func (m *Minio) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return m.publicURL + "/" + m.bucket + "/" + name, nil
}
