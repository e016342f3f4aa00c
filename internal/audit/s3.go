// Package audit archives every batch fetched from the sales feed to S3 so a
// poll run can be replayed or inspected after the fact.
package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
)

// ObjectPutter is the subset of *s3.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes gzipped JSON batches keyed by variant, date and run id.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// batch is the archived document.
type batch struct {
	RunID      string             `json:"run_id"`
	Variant    domain.PollVariant `json:"variant"`
	Window     domain.Window      `json:"window"`
	FetchedAt  time.Time          `json:"fetched_at"`
	EventCount int                `json:"event_count"`
	Events     []domain.SaleEvent `json:"events"`
}

// NewS3Client loads the default AWS configuration for the region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// NewArchiver builds an archiver over any ObjectPutter.
func NewArchiver(client ObjectPutter, bucket, prefix string) *S3Archiver {
	logger.Info("audit: s3 archive enabled", "bucket", bucket, "prefix", prefix)
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a run.
func (a *S3Archiver) Key(run domain.PollRun) string {
	day := run.StartedAt.UTC().Format("2006/01/02")
	name := fmt.Sprintf("%s/%s/%s.json.gz", run.Variant, day, run.ID)
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// Archive uploads the batch fetched by run.
func (a *S3Archiver) Archive(ctx context.Context, run domain.PollRun, events []domain.SaleEvent) error {
	doc := batch{
		RunID:      run.ID,
		Variant:    run.Variant,
		Window:     run.Window,
		FetchedAt:  time.Now().UTC(),
		EventCount: len(events),
		Events:     events,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize batch: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return fmt.Errorf("failed to compress batch: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress batch: %w", err)
	}

	key := a.Key(run)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
		Metadata: map[string]string{
			"run_id":      run.ID,
			"variant":     string(run.Variant),
			"event_count": strconv.Itoa(len(events)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload batch to S3: %w", err)
	}

	logger.Debug("audit: batch archived", "bucket", a.bucket, "key", key, "bytes", buf.Len())
	return nil
}
