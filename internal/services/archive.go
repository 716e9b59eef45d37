package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/gcp"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// Archive writes originals to durable storage under content-addressed
// sharded keys. Writes are idempotent: an existing object with the right
// size is never re-uploaded, and a size mismatch after upload is a hard
// error rather than silent corruption.
type Archive struct {
	log    *logger.Logger
	bucket gcp.Bucket
}

func NewArchive(log *logger.Logger, bucket gcp.Bucket) *Archive {
	return &Archive{
		log:    log.With("service", "Archive"),
		bucket: bucket,
	}
}

// KeyForURL derives the content-addressed key for a source URL.
func (a *Archive) KeyForURL(url string) string {
	return assets.IDFromURL(url)
}

// PayloadPath is the sharded object path for an original:
// o/<aa>/<bb>/<key>.<ext>, with the shard taken from sha1 of the key so
// objects spread evenly regardless of key distribution.
func (a *Archive) PayloadPath(key, ext string) (string, error) {
	base, err := shardPrefix(key)
	if err != nil {
		return "", err
	}
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("o/%s/%s.%s", base, key, ext), nil
}

// MetaPath is the sidecar metadata path for a key.
func (a *Archive) MetaPath(key string) (string, error) {
	base, err := shardPrefix(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("o/%s/%s.meta.json", base, key), nil
}

// VariantPath is the object path for a preset rendition.
func (a *Archive) VariantPath(key, preset, ext string) (string, error) {
	base, err := shardPrefix(key)
	if err != nil {
		return "", err
	}
	if ext == "" {
		ext = "webp"
	}
	return fmt.Sprintf("v/%s/%s-%s.%s", base, key, preset, ext), nil
}

// Store uploads data under key unless an object of the same size already
// exists. Returns the public URL of the stored object.
func (a *Archive) Store(ctx context.Context, key string, data []byte) (string, error) {
	exists, size, err := a.bucket.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	if exists && size == int64(len(data)) {
		a.log.Debug("archive object already present, skipping upload", "key", key, "size", size)
		return a.bucket.PublicURL(key), nil
	}

	written, err := a.bucket.Upload(ctx, key, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if written != int64(len(data)) {
		// Remove the truncated object so the next attempt re-uploads.
		if err := a.bucket.Delete(ctx, key); err != nil {
			a.log.Warn("could not remove truncated object", "key", key, "error", err)
		}
		return "", fmt.Errorf("archive upload size mismatch for %q: wrote %d of %d bytes", key, written, len(data))
	}
	a.log.Info("archived original", "key", key, "size", written)
	return a.bucket.PublicURL(key), nil
}

// Load reads a stored object back in full.
func (a *Archive) Load(ctx context.Context, key string) ([]byte, error) {
	return a.bucket.Read(ctx, key)
}

func shardPrefix(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("archive key must not be empty")
	}
	sum := fmt.Sprintf("%x", sha1.Sum([]byte(key)))
	return sum[0:2] + "/" + sum[2:4], nil
}
