package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/billsync/pkg/webhook"
)

// Config selects the archive bucket. Archiving is disabled when Bucket is empty.
type Config struct {
	Bucket         string `env:"ARCHIVE_S3_BUCKET"`
	Region         string `env:"ARCHIVE_S3_REGION" envDefault:"us-east-1"`
	Prefix         string `env:"ARCHIVE_S3_PREFIX" envDefault:"stripe-events"`
	Endpoint       string `env:"ARCHIVE_S3_ENDPOINT"`
	AccessKeyID    string `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"ARCHIVE_S3_SECRET_ACCESS_KEY"`
	ForcePathStyle bool   `env:"ARCHIVE_S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// S3Client is the part of the S3 API the archiver uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archiver writes raw event payloads to S3.
type S3Archiver struct {
	client S3Client
	bucket string
	prefix string
	now    func() time.Time
}

// Option configures an S3Archiver.
type Option func(*S3Archiver)

// WithClient uses a pre-configured client instead of loading AWS config.
func WithClient(c S3Client) Option {
	return func(a *S3Archiver) { a.client = c }
}

// WithClock sets the time source used to date events without a creation time.
func WithClock(now func() time.Time) Option {
	return func(a *S3Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// NewS3Archiver builds an archiver for cfg.Bucket. Unless WithClient is
// given, the client is created from the default AWS config chain, with
// static credentials and a custom endpoint when configured.
func NewS3Archiver(ctx context.Context, cfg Config, opts ...Option) (*S3Archiver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}
	a := &S3Archiver{bucket: cfg.Bucket, prefix: cfg.Prefix, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.client != nil {
		return a, nil
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadConfig, err)
	}
	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return a, nil
}

// Archive implements Archiver. The body is stored byte for byte as received.
func (a *S3Archiver) Archive(ctx context.Context, evt *webhook.VerifiedEvent) (string, error) {
	if evt.ID == "" {
		return "", ErrMissingEventID
	}
	if len(evt.RawBody) == 0 {
		return "", ErrEmptyPayload
	}
	key := Key(a.prefix, evt, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(evt.RawBody),
		ContentLength: aws.Int64(int64(len(evt.RawBody))),
		ContentType:   aws.String("application/json"),
		Metadata: map[string]string{
			"event-id":   evt.ID,
			"event-type": evt.Type,
		},
	})
	if err != nil {
		return "", classifyError(err, "put")
	}
	return key, nil
}

// Fetch reads an archived payload back, e.g. for replay.
func (a *S3Archiver) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyError(err, "get")
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived event %s: %w", key, err)
	}
	return data, nil
}

func classifyError(err error, op string) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return errors.Join(ErrObjectNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return errors.Join(ErrBucketNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey":
			return errors.Join(ErrObjectNotFound, err)
		case "NoSuchBucket":
			return errors.Join(ErrBucketNotFound, err)
		case "AccessDenied":
			return errors.Join(ErrAccessDenied, err)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return errors.Join(ErrUnavailable, err)
		}
	}
	return fmt.Errorf("archive %s failed: %w", op, err)
}
