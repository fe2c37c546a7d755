package blob

import (
	"context"
	"io"
	"strings"
	"time"
)

// ObjectAttrs is the live metadata of a stored object, re-derived from the
// backing store at read time rather than trusted from a persisted snapshot.
type ObjectAttrs struct {
	Key         string
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

// Store is the narrow contract this backend has with external object storage.
// Artifacts, evidence packs and notebook outputs all live behind it.
type Store interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	URL(key string) string
}

// KeyFromURL resolves an object key from a stored artifact URL. Both native
// scheme URLs (gs://bucket/key, s3://bucket/key) and https URLs with the
// bucket as the first path segment are accepted.
func KeyFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, scheme := range []string{"gs://", "s3://"} {
		if strings.HasPrefix(raw, scheme) {
			rest := strings.TrimPrefix(raw, scheme)
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				return rest[i+1:]
			}
			return ""
		}
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		rest := raw[strings.Index(raw, "://")+3:]
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) == 3 {
			return parts[2]
		}
		return ""
	}
	return strings.TrimPrefix(raw, "/")
}

// BaseName returns the final path segment of a key or URL.
func BaseName(keyOrURL string) string {
	s := strings.TrimRight(strings.TrimSpace(keyOrURL), "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}
