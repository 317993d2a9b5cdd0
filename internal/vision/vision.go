// Package vision extracts positioned block labels from uploaded photos.
package vision

import (
	"context"
	"fmt"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/makecode"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// Client turns an image into raw text detections. Implementations report
// one detection per printed block caption; downstream stages own all
// interpretation of the text.
type Client interface {
	Detect(ctx context.Context, img []byte, mimeType string) ([]makecode.DetectedLabel, error)
	Close() error
}

// New selects the detector named by the configuration.
func New(ctx context.Context, cfg config.VisionConfig, log *logger.Logger) (Client, error) {
	switch cfg.Provider {
	case "gcp":
		return NewGCP(ctx, cfg, log)
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}
