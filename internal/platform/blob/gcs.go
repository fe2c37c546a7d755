package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/clearlens/governance-backend/internal/platform/logger"
)

type gcsStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewGCSStore builds a Store over Google Cloud Storage. ARTIFACT_GCS_BUCKET
// names the bucket; STORAGE_EMULATOR_HOST switches to the local emulator
// without credentials.
func NewGCSStore(ctx context.Context, log *logger.Logger) (Store, error) {
	bucket := strings.TrimSpace(os.Getenv("ARTIFACT_GCS_BUCKET"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var ARTIFACT_GCS_BUCKET")
	}

	var opts []option.ClientOption
	if emulator := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); emulator != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	serviceLog := log.With("service", "GCSStore")
	serviceLog.Info("Object storage initialized", "bucket", bucket)
	return &gcsStore{log: serviceLog, client: client, bucket: bucket}, nil
}

func (s *gcsStore) Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("missing object key")
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %q: %w", key, err)
	}
	return s.URL(key), nil
}

func (s *gcsStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return r, nil
}

func (s *gcsStore) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return &ObjectAttrs{
		Key:         key,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

func (s *gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *gcsStore) URL(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}
