package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"ferry/internal/config"
	"ferry/internal/services"
	"ferry/internal/textutil"
)

// MetadataItemID is the object metadata key carrying the queue item ID.
const MetadataItemID = "ferry-item-id"

// Object describes one upload.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Metadata    map[string]string
	Body        io.Reader
}

// Store uploads whole objects. Put returns a backend-specific identifier for
// the stored object (URI, ETag-qualified key, or path).
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
	Name() string
}

// ReadinessChecker is implemented by stores that can verify connectivity.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Closer is implemented by stores holding client resources.
type Closer interface {
	Close() error
}

// New builds the store selected by cfg.Remote.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Remote.Backend {
	case config.BackendLocal:
		return NewLocal(cfg.Remote.LocalDir)
	case config.BackendS3:
		return NewS3(ctx, S3Options{
			Bucket:    cfg.Remote.Bucket,
			Region:    cfg.Remote.Region,
			Endpoint:  cfg.Remote.Endpoint,
			PathStyle: cfg.Remote.PathStyle,
		}, logger)
	case config.BackendGCS:
		return NewGCS(ctx, cfg.Remote.Bucket, cfg.Remote.CredentialsFile, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "remote", "new",
			fmt.Sprintf("unsupported backend %q", cfg.Remote.Backend), nil)
	}
}

// ObjectKey builds "<prefix>/<itemID>/<name>" with empty segments dropped.
// The name segment is sanitized; prefix may contain slashes.
func ObjectKey(prefix, itemID, name string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{prefix, itemID, textutil.SanitizeFileName(name)} {
		part = strings.Trim(strings.TrimSpace(part), "/")
		if part != "" {
			parts = append(parts, part)
		}
	}
	return path.Join(parts...)
}

func wrapPut(backend, key string, err error) error {
	return services.Wrap(services.ErrRemote, "remote", backend+" put", key, err)
}
