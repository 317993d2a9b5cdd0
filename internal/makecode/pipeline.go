package makecode

import (
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// Pipeline bundles the four stages behind one call. A single Pipeline is
// shared by all requests; every Run builds request-scoped state only.
type Pipeline struct {
	Catalog *Catalog

	normalizer  *Normalizer
	synthesizer *Synthesizer
	emitter     *Emitter
}

// Result carries everything a caller may want to surface: the rendered
// code, the tree, the blocks that made it in, and the labels that did not.
type Result struct {
	Code    string
	Tree    *ProgramTree
	Blocks  []CanonicalBlock
	Dropped []DetectedLabel
}

func NewPipeline(catalog *Catalog, matchThreshold, dedupDistPX float64, log *logger.Logger) *Pipeline {
	return &Pipeline{
		Catalog:     catalog,
		normalizer:  NewNormalizer(catalog, matchThreshold, log),
		synthesizer: NewSynthesizer(catalog, dedupDistPX, log),
		emitter:     NewEmitter(),
	}
}

func (p *Pipeline) Run(labels []DetectedLabel) Result {
	blocks, dropped := p.normalizer.Normalize(labels)
	tree := p.synthesizer.Synthesize(blocks)
	return Result{
		Code:    p.emitter.Emit(tree),
		Tree:    tree,
		Blocks:  blocks,
		Dropped: dropped,
	}
}

// Rebuild re-synthesizes the tree from previously normalized blocks, for
// callers that persisted the canonical list rather than the tree itself.
func (p *Pipeline) Rebuild(blocks []CanonicalBlock) *ProgramTree {
	return p.synthesizer.Synthesize(blocks)
}
