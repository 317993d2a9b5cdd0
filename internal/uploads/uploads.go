// Package uploads stores submitted photos so a submission can be
// re-inspected after recognition. Uploads are transient: a janitor sweeps
// anything older than the configured age.
package uploads

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

type Store interface {
	Save(ctx context.Context, key, contentType string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error

	// Sweep removes objects created before the cutoff and reports how
	// many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// New selects the backend named by the configuration.
func New(ctx context.Context, cfg config.UploadsConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocal(cfg.Dir, log)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, log)
	default:
		return nil, fmt.Errorf("unknown uploads backend %q", cfg.Backend)
	}
}

// NewKey builds a date-prefixed object key for an upload.
func NewKey(now time.Time, contentType string) string {
	return fmt.Sprintf("%s/%s%s", now.UTC().Format("2006/01/02"), uuid.NewString(), extForContentType(contentType))
}

// extForContentType covers the two types the upload endpoint admits:
// PNG, and JPEG for everything else.
func extForContentType(ct string) string {
	if strings.ToLower(strings.TrimSpace(ct)) == "image/png" {
		return ".png"
	}
	return ".jpg"
}
