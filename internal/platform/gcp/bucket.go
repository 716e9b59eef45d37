package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// Bucket is the durable object store for archived originals and variants.
type Bucket interface {
	// Stat reports existence and size without reading the object.
	Stat(ctx context.Context, key string) (bool, int64, error)
	Upload(ctx context.Context, key string, r io.Reader) (int64, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type bucketService struct {
	log        *logger.Logger
	client     *storage.Client
	bucketName string
	cdnDomain  string
}

func NewBucket(log *logger.Logger) (Bucket, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Bucket")

	bucketName := envutil.String("GCS_BUCKET_NAME", "")
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	cdnDomain := envutil.String("CDN_DOMAIN", "")

	var opts []option.ClientOption
	if creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	return &bucketService{
		log:        slog,
		client:     client,
		bucketName: bucketName,
		cdnDomain:  cdnDomain,
	}, nil
}

func (b *bucketService) Stat(ctx context.Context, key string) (bool, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	attrs, err := b.client.Bucket(b.bucketName).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("stat gcs object %q: %w", key, err)
	}
	return true, attrs.Size, nil
}

func (b *bucketService) Upload(ctx context.Context, key string, r io.Reader) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := b.client.Bucket(b.bucketName).Object(key).NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("write gcs object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("close gcs writer for %q: %w", key, err)
	}
	return n, nil
}

func (b *bucketService) Read(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	rc, err := b.client.Bucket(b.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %q: %w", key, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *bucketService) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := b.client.Bucket(b.bucketName).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete gcs object %q: %w", key, err)
	}
	return nil
}

func (b *bucketService) PublicURL(key string) string {
	if b.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", b.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucketName, key)
}
