package vision

import (
	"context"

	"github.com/yungbote/blockbridge-backend/internal/makecode"
)

// Mock returns a fixed three-block program regardless of the image, so
// the whole upload path can be exercised without credentials.
type Mock struct {
	Detections []makecode.DetectedLabel
}

func NewMock() *Mock {
	return &Mock{
		Detections: []makecode.DetectedLabel{
			{Text: "on button A", Confidence: 0.97, Box: makecode.Box{X: 42, Y: 58, W: 310, H: 46}},
			{Text: "show icon heart", Confidence: 0.93, Box: makecode.Box{X: 74, Y: 118, W: 280, H: 42}},
			{Text: "play sound happy", Confidence: 0.88, Box: makecode.Box{X: 74, Y: 172, W: 295, H: 42}},
		},
	}
}

func (m *Mock) Detect(ctx context.Context, img []byte, mimeType string) ([]makecode.DetectedLabel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]makecode.DetectedLabel, len(m.Detections))
	copy(out, m.Detections)
	return out, nil
}

func (m *Mock) Close() error { return nil }
