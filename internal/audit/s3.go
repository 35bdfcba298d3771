package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Settings configures the export destination (an S3-compatible backend,
// e.g. MinIO in local setups).
type S3Settings struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Exporter pushes audit exports to object storage for offline review.
type S3Exporter struct {
	settings S3Settings
	// newClient is a seam for tests
	newClient func(ctx context.Context) (putObjectAPI, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func NewS3Exporter(settings S3Settings) *S3Exporter {
	e := &S3Exporter{settings: settings}
	e.newClient = e.defaultClient
	return e
}

func (e *S3Exporter) defaultClient(ctx context.Context) (putObjectAPI, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(e.settings.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.settings.RootUser,
			e.settings.RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(e.settings.BaseEndpoint)
	}), nil
}

// ExportKey builds a date-partitioned object key for an export file.
func ExportKey(now time.Time) string {
	return fmt.Sprintf("audit-exports/%d/%02d/%02d/audit-%d.csv",
		now.Year(), now.Month(), now.Day(), now.UnixNano())
}

// Upload stores one export body under key in the configured bucket.
func (e *S3Exporter) Upload(ctx context.Context, key, body string) error {
	client, err := e.newClient(ctx)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	contentType := "text/csv"
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &e.settings.Bucket,
		Key:         &key,
		Body:        strings.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put: %w", err)
	}
	return nil
}
