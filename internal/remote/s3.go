package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ferry/internal/logging"
	"ferry/internal/services"
)

// s3API is the subset of the S3 client the adapter uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options configures the S3 adapter.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3 uploads objects with PutObject.
type S3 struct {
	client s3API
	bucket string
	logger *slog.Logger
}

// NewS3 loads credentials from the default AWS chain and builds a client.
func NewS3(ctx context.Context, opts S3Options, logger *slog.Logger) (*S3, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "s3", "bucket is required", nil)
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "s3", "load aws config", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return newS3WithClient(client, opts.Bucket, logger), nil
}

func newS3WithClient(client s3API, bucket string, logger *slog.Logger) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		logger: logging.NewComponentLogger(logger, "remote-s3"),
	}
}

func (s *S3) Name() string { return "s3://" + s.bucket }

// Put uploads obj in a single request. The body must be an io.ReadSeeker for
// the SDK to compute payload checksums and retry.
func (s *S3) Put(ctx context.Context, obj Object) (string, error) {
	if obj.Body == nil {
		return "", wrapPut("s3", obj.Key, errors.New("nil body"))
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(obj.Key),
		Body:     obj.Body,
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if obj.Size >= 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", wrapPut("s3", obj.Key, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", s.bucket, obj.Key)
	s.logger.Debug("object stored",
		logging.String("uri", uri),
		logging.String("etag", strings.Trim(aws.ToString(out.ETag), `"`)),
	)
	return uri, nil
}

// Ready verifies the bucket is reachable with the loaded credentials.
func (s *S3) Ready(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return services.Wrap(services.ErrRemote, "remote", "s3 head bucket", s.bucket, err)
	}
	return nil
}
