package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
)

type fakeWriter struct {
	buf      bytes.Buffer
	closeErr error
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	return w.closeErr
}

func TestUploaderWritesObject(t *testing.T) {
	var captured *fakeWriter
	var gotBucket, gotObject, gotContentType string

	uploader, err := NewUploader(nil, WithObjectWriter(func(_ context.Context, bucket, object, contentType string) io.WriteCloser {
		gotBucket, gotObject, gotContentType = bucket, object, contentType
		captured = &fakeWriter{}
		return captured
	}))
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}

	data := []byte("fecha;producto;base;iva\n")
	if err := uploader.WriteObject(context.Background(), "exports", "reports/2026-07.csv", "text/csv", data); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}

	if gotBucket != "exports" || gotObject != "reports/2026-07.csv" {
		t.Fatalf("unexpected destination %s/%s", gotBucket, gotObject)
	}
	if gotContentType != "text/csv" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if !bytes.Equal(captured.buf.Bytes(), data) {
		t.Fatalf("unexpected payload %q", captured.buf.String())
	}
}

func TestUploaderRetriesTransientErrors(t *testing.T) {
	attempts := 0
	uploader, err := NewUploader(nil,
		WithObjectWriter(func(context.Context, string, string, string) io.WriteCloser {
			attempts++
			if attempts == 1 {
				return &fakeWriter{closeErr: &googleapi.Error{Code: 503}}
			}
			return &fakeWriter{}
		}),
		WithBackoff(gax.Backoff{Initial: time.Millisecond, Max: time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}

	if err := uploader.WriteObject(context.Background(), "exports", "reports/r.csv", "text/csv", []byte("x")); err != nil {
		t.Fatalf("WriteObject after retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestUploaderDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	uploader, err := NewUploader(nil,
		WithObjectWriter(func(context.Context, string, string, string) io.WriteCloser {
			attempts++
			return &fakeWriter{closeErr: &googleapi.Error{Code: 403}}
		}),
		WithBackoff(gax.Backoff{Initial: time.Millisecond, Max: time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}

	if err := uploader.WriteObject(context.Background(), "exports", "reports/r.csv", "text/csv", []byte("x")); err == nil {
		t.Fatal("expected permission error to surface")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestUploaderValidatesDestination(t *testing.T) {
	uploader, err := NewUploader(nil, WithObjectWriter(func(context.Context, string, string, string) io.WriteCloser {
		return &fakeWriter{}
	}))
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}

	if err := uploader.WriteObject(context.Background(), "", "object", "text/csv", nil); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if err := uploader.WriteObject(context.Background(), "bucket", " ", "text/csv", nil); err == nil {
		t.Fatal("expected error for missing object")
	}
}
