package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ObjectWriter opens a writer for the given bucket/object pair.
type ObjectWriter func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// Uploader writes export artifacts to Cloud Storage with bounded retries.
type Uploader struct {
	openWriter ObjectWriter
	backoff    gax.Backoff
}

// UploaderOption customises Uploader behaviour.
type UploaderOption func(*Uploader)

// WithObjectWriter overrides how object writers are opened, primarily for tests.
func WithObjectWriter(open ObjectWriter) UploaderOption {
	return func(u *Uploader) {
		if open != nil {
			u.openWriter = open
		}
	}
}

// WithBackoff overrides the retry backoff parameters.
func WithBackoff(backoff gax.Backoff) UploaderOption {
	return func(u *Uploader) {
		u.backoff = backoff
	}
}

// NewUploader constructs an Uploader backed by the provided Cloud Storage client.
func NewUploader(client *gcs.Client, opts ...UploaderOption) (*Uploader, error) {
	uploader := &Uploader{
		backoff: gax.Backoff{
			Initial:    200 * time.Millisecond,
			Max:        5 * time.Second,
			Multiplier: 2,
		},
	}
	if client != nil {
		uploader.openWriter = func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
			w := client.Bucket(bucket).Object(object).NewWriter(ctx)
			w.ContentType = contentType
			return w
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(uploader)
		}
	}
	if uploader.openWriter == nil {
		return nil, errors.New("storage uploader: client is required")
	}
	return uploader, nil
}

// WriteObject uploads data to the bucket, retrying transient backend failures.
func (u *Uploader) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if u == nil || u.openWriter == nil {
		return errors.New("storage uploader: not initialised")
	}
	bucket = strings.TrimSpace(bucket)
	object = strings.TrimSpace(object)
	if bucket == "" {
		return errors.New("storage uploader: bucket is required")
	}
	if object == "" {
		return errors.New("storage uploader: object name is required")
	}

	backoff := u.backoff
	err := gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		w := u.openWriter(ctx, bucket, object, contentType)
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	}, gax.WithRetry(func() gax.Retryer {
		return gax.OnErrorFunc(backoff, isTransient)
	}))
	if err != nil {
		return fmt.Errorf("storage uploader: write gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
