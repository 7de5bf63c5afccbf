// Package archive keeps a copy of every verified webhook delivery in object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/monuchauhan/InstaBot/core/config"
)

// Delivery is one raw webhook body as received.
type Delivery struct {
	ID         string
	ReceivedAt time.Time
	Body       []byte
}

// Key returns the object key for a delivery: webhooks/instagram/YYYY/MM/DD/<id>.json.
func (d Delivery) Key() string {
	return path.Join("webhooks", "instagram", d.ReceivedAt.UTC().Format("2006/01/02"), d.ID+".json")
}

type Archiver interface {
	// Archive hands the delivery off without blocking. It may drop it.
	Archive(ctx context.Context, d Delivery)
	Close(ctx context.Context) error
}

// ObjectPutter is the slice of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client. A non-empty endpoint switches to path-style
// addressing for MinIO and similar.
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3opts...), nil
}

const (
	defaultBuffer = 256
	putTimeout    = 10 * time.Second
)

type s3Archiver struct {
	client ObjectPutter
	bucket string
	queue  chan Delivery
	done   chan struct{}
	once   sync.Once
}

// NewS3Archiver starts a background uploader. Deliveries beyond buffer pending
// uploads are dropped with a warning.
func NewS3Archiver(client ObjectPutter, bucket string, buffer int) Archiver {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	a := &s3Archiver{
		client: client,
		bucket: bucket,
		queue:  make(chan Delivery, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *s3Archiver) Archive(ctx context.Context, d Delivery) {
	select {
	case a.queue <- d:
	default:
		slog.WarnContext(ctx, "archive buffer full, dropping delivery", "delivery_id", d.ID)
	}
}

func (a *s3Archiver) run() {
	defer close(a.done)
	for d := range a.queue {
		a.put(d)
	}
}

func (a *s3Archiver) put(d Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(d.Key()),
		Body:        bytes.NewReader(d.Body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		slog.Warn("failed to archive delivery", "delivery_id", d.ID, "error", err)
	}
}

// Close stops accepting deliveries and waits for pending uploads or ctx.
func (a *s3Archiver) Close(ctx context.Context) error {
	a.once.Do(func() { close(a.queue) })
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Noop discards deliveries. Used when no bucket is configured.
type Noop struct{}

func (Noop) Archive(context.Context, Delivery) {}

func (Noop) Close(context.Context) error { return nil }
