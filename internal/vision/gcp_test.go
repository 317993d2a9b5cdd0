package vision

import (
	"context"
	"strings"
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/blockbridge-backend/internal/makecode"
)

func word(s string) *visionpb.Word {
	w := &visionpb.Word{}
	for _, r := range s {
		w.Symbols = append(w.Symbols, &visionpb.Symbol{Text: string(r)})
	}
	return w
}

func paragraph(text string, confidence float32, x, y, w, h int32) *visionpb.Paragraph {
	p := &visionpb.Paragraph{
		Confidence: confidence,
		BoundingBox: &visionpb.BoundingPoly{
			Vertices: []*visionpb.Vertex{
				{X: x, Y: y},
				{X: x + w, Y: y},
				{X: x + w, Y: y + h},
				{X: x, Y: y + h},
			},
		},
	}
	for _, f := range strings.Fields(text) {
		p.Words = append(p.Words, word(f))
	}
	return p
}

func TestLabelsFromAnnotation(t *testing.T) {
	fta := &visionpb.TextAnnotation{
		Text: "on button A\nshow icon heart\n",
		Pages: []*visionpb.Page{{
			Blocks: []*visionpb.Block{
				{Paragraphs: []*visionpb.Paragraph{
					paragraph("on button A", 0.5, 40, 60, 300, 44),
				}},
				{Paragraphs: []*visionpb.Paragraph{
					paragraph("show icon heart", 0.25, 70, 120, 280, 40),
					paragraph("", 0.9, 0, 0, 0, 0),
				}},
			},
		}},
	}

	labels := labelsFromAnnotation(fta)
	if len(labels) != 2 {
		t.Fatalf("labels = %d, want 2 (blank paragraph skipped)", len(labels))
	}

	first := labels[0]
	if first.Text != "on button A" {
		t.Errorf("text = %q, want words joined with spaces", first.Text)
	}
	if first.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", first.Confidence)
	}
	want := makecode.Box{X: 40, Y: 60, W: 300, H: 44}
	if first.Box != want {
		t.Errorf("box = %+v, want %+v", first.Box, want)
	}

	if labels[1].Text != "show icon heart" {
		t.Errorf("second text = %q", labels[1].Text)
	}
}

func TestLabelsFromAnnotationNil(t *testing.T) {
	if got := labelsFromAnnotation(nil); got != nil {
		t.Fatalf("labelsFromAnnotation(nil) = %v, want nil", got)
	}
}

func TestBoxFromNormalizedVertices(t *testing.T) {
	bp := &visionpb.BoundingPoly{
		NormalizedVertices: []*visionpb.NormalizedVertex{
			{X: 0.25, Y: 0.5},
			{X: 0.75, Y: 0.5},
			{X: 0.75, Y: 0.625},
			{X: 0.25, Y: 0.625},
		},
	}
	box := boxFromPoly(bp)
	want := makecode.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.125}
	if box != want {
		t.Fatalf("box = %+v, want %+v", box, want)
	}
}

func TestMockFeedsPipeline(t *testing.T) {
	catalog, err := makecode.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	p := makecode.NewPipeline(catalog, 0.72, 40, nil)

	m := NewMock()
	labels, err := m.Detect(context.Background(), []byte("not really a jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("mock detect: %v", err)
	}

	res := p.Run(labels)
	if len(res.Dropped) != 0 {
		t.Fatalf("mock labels should all resolve, dropped %+v", res.Dropped)
	}
	if !strings.Contains(res.Code, "input.onButtonPressed(Button.A, function () {") {
		t.Fatalf("unexpected code:\n%s", res.Code)
	}
}
