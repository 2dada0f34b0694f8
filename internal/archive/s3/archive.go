// Package s3 archives job output in an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/internal/metrics"
)

// Config locates the archive bucket.
type Config struct {
	Endpoint  string // e.g. http://localhost:9000; empty uses AWS
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string // Key prefix inside the bucket
}

// Archiver uploads job output to S3/MinIO.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an archiver, creating the bucket if it does not exist.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	a := &Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}
	_, createErr := a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if createErr != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", a.bucket, createErr)
	}
	logging.Info("created S3 bucket", logging.String("bucket", a.bucket))
	return nil
}

// Key returns the object key a job's output is stored under.
func (a *Archiver) Key(jobID int) string {
	return path.Join(a.prefix, "jobs", strconv.Itoa(jobID), "output.txt")
}

// Archive uploads size bytes of body as the job's output and returns the key.
func (a *Archiver) Archive(ctx context.Context, jobID int, body io.ReadSeeker, size int64) (string, error) {
	key := a.Key(jobID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("text/plain; charset=utf-8"),
	})
	metrics.RecordArchiveUpload(err)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	logging.Info("archived job output",
		logging.JobID(jobID),
		logging.String("bucket", a.bucket),
		logging.String("key", key),
		logging.Int64("bytes", size),
	)
	return key, nil
}
