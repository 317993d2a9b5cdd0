package uploads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/blockbridge-backend/internal/platform/gcp"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// GCS stores uploads in a Cloud Storage bucket, for installs where
// several server instances share state.
type GCS struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string, log *logger.Logger) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("uploads: gcs backend requires a bucket")
	}
	if log == nil {
		log = logger.NewNop()
	}
	opts := append(gcp.ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCS{
		log:    log.With("component", "uploads.gcs"),
		client: client,
		bucket: bucket,
	}, nil
}

func (g *GCS) Save(ctx context.Context, key, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer: %w", err)
	}
	return nil
}

// Open attaches the timeout's cancel to the reader's Close; cancelling
// before the caller reads would truncate the object to zero bytes.
func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open gcs object: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return g.client.Bucket(g.bucket).Object(key).Delete(ctx)
}

func (g *GCS) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{})
	removed := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, err
		}
		if attrs.Created.Before(cutoff) {
			if err := g.client.Bucket(g.bucket).Object(attrs.Name).Delete(ctx); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		g.log.Info("swept stale uploads", "removed", removed)
	}
	return removed, nil
}

func (g *GCS) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}
