package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"ferry/internal/logging"
	"ferry/internal/services"
)

// GCS uploads objects to a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewGCS creates a client using credentialsFile when set, otherwise
// application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile string, logger *slog.Logger) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "gcs", "bucket is required", nil)
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "gcs", "create client", err)
	}
	return &GCS{
		client: client,
		bucket: bucket,
		logger: logging.NewComponentLogger(logger, "remote-gcs"),
	}, nil
}

func (g *GCS) Name() string { return "gs://" + g.bucket }

// Put streams obj through a resumable object writer. The object only becomes
// visible when Close succeeds.
func (g *GCS) Put(ctx context.Context, obj Object) (string, error) {
	if obj.Body == nil {
		return "", wrapPut("gcs", obj.Key, errors.New("nil body"))
	}
	writer := g.client.Bucket(g.bucket).Object(obj.Key).NewWriter(ctx)
	writer.ContentType = obj.ContentType
	writer.Metadata = obj.Metadata

	if _, err := io.Copy(writer, obj.Body); err != nil {
		_ = writer.Close()
		return "", wrapPut("gcs", obj.Key, err)
	}
	if err := writer.Close(); err != nil {
		return "", wrapPut("gcs", obj.Key, err)
	}
	uri := fmt.Sprintf("gs://%s/%s", g.bucket, obj.Key)
	g.logger.Debug("object stored", logging.String("uri", uri), logging.Int64("size_bytes", writer.Attrs().Size))
	return uri, nil
}

// Ready fetches bucket attributes to confirm access.
func (g *GCS) Ready(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return services.Wrap(services.ErrRemote, "remote", "gcs bucket attrs", g.bucket, err)
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
