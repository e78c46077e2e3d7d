package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

// BlobStore сохраняет файлы и отдает их публичный адрес.
type BlobStore interface {
	// Upload writes r under key and returns the durable public URL.
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// GCSConfig - параметры бакета.
type GCSConfig struct {
	Bucket          string
	CDNDomain       string
	CredentialsFile string
}

type gcsStore struct {
	client    *storage.Client
	bucket    string
	cdnDomain string
	logger    *zap.Logger
}

var _ BlobStore = (*gcsStore)(nil)

// NewGCSStore creates a Google Cloud Storage backed BlobStore.
// Без CredentialsFile используются Application Default Credentials.
func NewGCSStore(ctx context.Context, cfg GCSConfig, logger *zap.Logger) (BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is not configured")
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log := logger.Named("GCSStore")
	log.Info("Blob storage initialized", zap.String("bucket", cfg.Bucket), zap.String("cdnDomain", cfg.CDNDomain))
	return &gcsStore{
		client:    client,
		bucket:    cfg.Bucket,
		cdnDomain: cfg.CDNDomain,
		logger:    log,
	}, nil
}

func (s *gcsStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	// Отмененный до Close writer не сохраняет обрезанный объект.
	writeCtx, abort := context.WithCancel(ctx)
	defer abort()

	key = normalizeKey(key)
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(writeCtx)
	if contentType != "" {
		w.ContentType = contentType
	}
	written, err := io.Copy(w, r)
	if err != nil {
		abort()
		_ = w.Close()
		s.logger.Warn("Upload aborted", zap.String("key", key), zap.Int64("bytes", written), zap.Error(err))
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	publicURL := PublicURL(s.bucket, s.cdnDomain, key)
	s.logger.Info("Object uploaded", zap.String("key", key), zap.Int64("bytes", written), zap.String("url", publicURL))
	return publicURL, nil
}

// Close releases the underlying client.
func (s *gcsStore) Close() error {
	return s.client.Close()
}

// PublicURL returns the CDN address when cdnDomain is set, else the storage.googleapis.com one.
func PublicURL(bucket, cdnDomain, key string) string {
	key = normalizeKey(key)
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", strings.TrimRight(cdnDomain, "/"), key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
