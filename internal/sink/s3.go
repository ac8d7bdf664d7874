package sink

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"chatvault/internal/archive"
	"chatvault/internal/config"
)

// uploader is the part of manager.Uploader the sink uses.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// bucketHeader is the part of s3.Client used to validate the bucket.
type bucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Sink uploads bundles to an S3 (or S3-compatible) bucket:
//
//	s3://<bucket>/<prefix>/<name>
//
// Large bundles go up as multipart uploads.
type S3Sink struct {
	name     string
	bucket   string
	prefix   string
	uploader uploader
	client   bucketHeader
}

// NewS3Sink builds an S3 client from the sink config. Region and static
// credentials are optional and fall back to the default AWS chain. A custom
// endpoint switches the client to path-style addressing for MinIO and
// similar services.
func NewS3Sink(ctx context.Context, cfg config.SinkConfig) (*S3Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 sink requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Sink(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, manager.NewUploader(client), client), nil
}

func newS3Sink(name, bucket, prefix string, up uploader, client bucketHeader) *S3Sink {
	return &S3Sink{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		uploader: up,
		client:   client,
	}
}

// key returns the object key for a bundle name.
func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads the bundle and returns its object location.
func (s *S3Sink) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	key := s.key(name)
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to bucket %s: %w", key, s.bucket, err)
	}
	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// ValidateSetup checks that the bucket exists and the credentials can reach it.
func (s *S3Sink) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

var _ archive.BundleSink = (*S3Sink)(nil)
