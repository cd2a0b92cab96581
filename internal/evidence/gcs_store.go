package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/raidwatch/raidwatch/internal/circuitbreaker"
)

// breakerKey is the single circuit key for the GCS upstream.
const breakerKey = "gcs"

// GCSStore keeps evidence blobs in a Google Cloud Storage bucket and
// serves them through the public storage.googleapis.com URL scheme.
// Uploads run behind a circuit breaker so a struggling bucket fails
// report intake fast instead of stacking 30-second timeouts.
type GCSStore struct {
	client  *storage.Client
	bucket  *storage.BucketHandle
	breaker *circuitbreaker.Breaker

	bucketName string
	logger     *slog.Logger
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore connects to GCS. credentialsFile may be empty, in which
// case application default credentials apply.
func NewGCSStore(ctx context.Context, bucketName, credentialsFile string, logger *slog.Logger) (*GCSStore, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("evidence: bucket not set")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("evidence: create storage client: %w", err)
	}

	return &GCSStore{
		client:     client,
		bucket:     client.Bucket(bucketName),
		breaker:    circuitbreaker.New(5, 30*time.Second),
		bucketName: bucketName,
		logger:     logger,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if !s.breaker.Allow(breakerKey) {
		return "", fmt.Errorf("%w: evidence store circuit open", ErrUploadFailed)
	}

	name := ObjectName(filename)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		s.breaker.RecordFailure(breakerKey)
		s.logger.Error("evidence upload failed", "object", name, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := w.Close(); err != nil {
		s.breaker.RecordFailure(breakerKey)
		s.logger.Error("evidence upload failed", "object", name, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	s.breaker.RecordSuccess(breakerKey)
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, name), nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
