// Package makecode turns noisy vision detections of micro:bit blocks into
// MakeCode-style JavaScript. The pipeline has four stages: the catalog
// (static block definitions), the normalizer (raw label → canonical
// identifier), the synthesizer (canonical blocks → nested program tree),
// and the emitter (tree → source text). The pipeline does no I/O and keeps
// no per-request state; the catalog is immutable after load and safe for
// concurrent readers.
package makecode

import "math"

// Role says whether a block nests children.
type Role string

const (
	RoleContainer Role = "container"
	RoleLeaf      Role = "leaf"
)

// Categories are the MakeCode toolbox drawers a block may belong to.
var Categories = []string{
	"basic", "input", "music", "led", "radio", "loops",
	"logic", "variables", "math", "pins", "control", "events",
}

// Box is an axis-aligned bounding box in source-image pixels.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b Box) CenterX() float64 { return b.X + b.W/2 }
func (b Box) CenterY() float64 { return b.Y + b.H/2 }

// CenterDistance is the Euclidean distance between two box centers.
func (b Box) CenterDistance(o Box) float64 {
	dx := b.CenterX() - o.CenterX()
	dy := b.CenterY() - o.CenterY()
	return math.Sqrt(dx*dx + dy*dy)
}

// sanitized maps NaN/Inf coordinates to zero so ordering degrades to
// detection order instead of corrupting sort comparisons.
func (b Box) sanitized() Box {
	clean := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return Box{X: clean(b.X), Y: clean(b.Y), W: clean(b.W), H: clean(b.H)}
}

// DetectedLabel is one raw unit from the vision service: text plus
// position plus confidence (zero when the detector gives none). Position
// is used only for ordering and nesting heuristics.
type DetectedLabel struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// CanonicalBlock is a DetectedLabel resolved against the catalog. Index is
// the original detection order and breaks any remaining ordering ties.
type CanonicalBlock struct {
	Def   *BlockDefinition
	Label DetectedLabel
	Index int
}

// Node is one placed block in the program tree; only container blocks
// carry children.
type Node struct {
	Block    CanonicalBlock
	Children []*Node
}

// ProgramTree is the synthesized program. The root scope is implicit;
// Roots holds the top-level containers ordered by vertical position.
type ProgramTree struct {
	Roots []*Node
}

func (t *ProgramTree) Empty() bool {
	return t == nil || len(t.Roots) == 0
}
