package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/makecode"
	"github.com/yungbote/blockbridge-backend/internal/platform/gcp"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// GCP recognizes block captions with Cloud Vision document text detection.
type GCP struct {
	log     *logger.Logger
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

func NewGCP(ctx context.Context, cfg config.VisionConfig, log *logger.Logger) (*GCP, error) {
	if log == nil {
		log = logger.NewNop()
	}
	client, err := vision.NewImageAnnotatorClient(ctx, gcp.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GCP{
		log:     log.With("component", "vision.gcp"),
		client:  client,
		timeout: timeout,
	}, nil
}

func (g *GCP) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GCP) Detect(ctx context.Context, img []byte, mimeType string) ([]makecode.DetectedLabel, error) {
	if len(img) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate: %s", r0.Error.Message)
	}

	labels := labelsFromAnnotation(r0.FullTextAnnotation)
	g.log.Debug("image annotated", "mime_type", mimeType, "labels", len(labels))
	return labels, nil
}

// labelsFromAnnotation flattens a full-text annotation to one label per
// paragraph. A printed block caption occupies one visual line, which
// Vision groups as a paragraph, so paragraph granularity approximates one
// detection per block.
func labelsFromAnnotation(fta *visionpb.TextAnnotation) []makecode.DetectedLabel {
	if fta == nil {
		return nil
	}
	var labels []makecode.DetectedLabel
	for _, page := range fta.Pages {
		if page == nil {
			continue
		}
		for _, block := range page.Blocks {
			if block == nil {
				continue
			}
			for _, para := range block.Paragraphs {
				if para == nil {
					continue
				}
				text := paragraphText(para)
				if strings.TrimSpace(text) == "" {
					continue
				}
				labels = append(labels, makecode.DetectedLabel{
					Text:       text,
					Confidence: float64(para.Confidence),
					Box:        boxFromPoly(para.BoundingBox),
				})
			}
		}
	}
	return labels
}

func paragraphText(p *visionpb.Paragraph) string {
	words := make([]string, 0, len(p.Words))
	for _, w := range p.Words {
		if w == nil {
			continue
		}
		var sb strings.Builder
		for _, s := range w.Symbols {
			if s != nil {
				sb.WriteString(s.Text)
			}
		}
		if sb.Len() > 0 {
			words = append(words, sb.String())
		}
	}
	return strings.Join(words, " ")
}

// boxFromPoly converts a bounding polygon to an axis-aligned box. Pixel
// vertices are preferred; normalized vertices (0..1) still order labels
// correctly because every label in one image shares the same scale.
func boxFromPoly(bp *visionpb.BoundingPoly) makecode.Box {
	if bp == nil {
		return makecode.Box{}
	}

	pts := make([][2]float64, 0, 4)
	if len(bp.Vertices) > 0 {
		for _, v := range bp.Vertices {
			if v != nil {
				pts = append(pts, [2]float64{float64(v.X), float64(v.Y)})
			}
		}
	} else {
		for _, v := range bp.NormalizedVertices {
			if v != nil {
				pts = append(pts, [2]float64{float64(v.X), float64(v.Y)})
			}
		}
	}
	if len(pts) == 0 {
		return makecode.Box{}
	}

	minX, minY := pts[0][0], pts[0][1]
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	return makecode.Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
