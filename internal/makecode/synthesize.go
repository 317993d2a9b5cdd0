package makecode

import (
	"sort"

	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// ImplicitContainerID is the container synthesized when a program has
// leaves but no container blocks: everything runs once at start.
const ImplicitContainerID = "on_start"

// Synthesizer arranges canonical blocks into a nested program tree. It
// never fails; empty input yields an empty tree.
type Synthesizer struct {
	catalog     *Catalog
	dedupDistPX float64
	log         *logger.Logger
}

func NewSynthesizer(catalog *Catalog, dedupDistPX float64, log *logger.Logger) *Synthesizer {
	if dedupDistPX < 0 {
		dedupDistPX = 0
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Synthesizer{
		catalog:     catalog,
		dedupDistPX: dedupDistPX,
		log:         log.With("component", "synthesizer"),
	}
}

// Synthesize builds the tree: containers become top-level scopes ordered
// by vertical position, and each leaf attaches to the nearest container
// above it. "Nearest container above" is a deliberate approximation of
// visual containment — the detector gives no true geometry, so the last
// container encountered scanning top-to-bottom owns the leaf. Leaves
// above the first container attach to the first container.
func (s *Synthesizer) Synthesize(blocks []CanonicalBlock) *ProgramTree {
	tree := &ProgramTree{}
	if len(blocks) == 0 {
		return tree
	}

	var containers, leaves []CanonicalBlock
	for _, b := range blocks {
		if b.Def == nil {
			continue
		}
		b.Label.Box = b.Label.Box.sanitized()
		if b.Def.Role == RoleContainer {
			containers = append(containers, b)
		} else {
			leaves = append(leaves, b)
		}
	}

	containers = s.dedupe(containers)
	leaves = s.dedupe(leaves)

	if len(containers) == 0 {
		if len(leaves) == 0 {
			return tree
		}
		root := &Node{Block: s.implicitContainer()}
		sortBlocks(leaves)
		for _, leaf := range leaves {
			root.Children = append(root.Children, &Node{Block: leaf})
		}
		tree.Roots = []*Node{root}
		return tree
	}

	sortBlocks(containers)
	roots := make([]*Node, len(containers))
	for i, c := range containers {
		roots[i] = &Node{Block: c}
	}

	for _, leaf := range leaves {
		owner := roots[0]
		y := leaf.Label.Box.CenterY()
		for _, r := range roots {
			if r.Block.Label.Box.CenterY() <= y {
				owner = r
			} else {
				break
			}
		}
		owner.Children = append(owner.Children, &Node{Block: leaf})
	}

	for _, r := range roots {
		sortNodes(r.Children)
	}

	tree.Roots = roots
	return tree
}

// dedupe collapses same-identifier blocks whose box centers sit within the
// proximity threshold, keeping the higher-confidence detection. Blocks
// with the same identifier at clearly different positions stay distinct:
// a student may legitimately use one block twice.
func (s *Synthesizer) dedupe(blocks []CanonicalBlock) []CanonicalBlock {
	if len(blocks) < 2 {
		return blocks
	}
	kept := make([]CanonicalBlock, 0, len(blocks))
	for _, b := range blocks {
		merged := false
		for i := range kept {
			if kept[i].Def != b.Def {
				continue
			}
			if kept[i].Label.Box.CenterDistance(b.Label.Box) > s.dedupDistPX {
				continue
			}
			if b.Label.Confidence > kept[i].Label.Confidence {
				kept[i] = b
			}
			s.log.Debug("duplicate detection collapsed", "id", b.Def.ID)
			merged = true
			break
		}
		if !merged {
			kept = append(kept, b)
		}
	}
	return kept
}

func (s *Synthesizer) implicitContainer() CanonicalBlock {
	def, ok := s.catalog.Lookup(ImplicitContainerID)
	if !ok {
		def = fallbackImplicitDef
	}
	return CanonicalBlock{Def: def, Index: -1}
}

// fallbackImplicitDef keeps synthesis total even with a catalog that
// omits the start block.
var fallbackImplicitDef = &BlockDefinition{
	ID:       ImplicitContainerID,
	Category: "events",
	Role:     RoleContainer,
	Template: "// on start\n{{body}}",
}

// sortBlocks orders by vertical position, then horizontal position, then
// original detection order. The sort is deliberately stable on Index so
// degenerate position data degrades to detection order.
func sortBlocks(blocks []CanonicalBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blockLess(blocks[i], blocks[j])
	})
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return blockLess(nodes[i].Block, nodes[j].Block)
	})
}

func blockLess(a, b CanonicalBlock) bool {
	ay, by := a.Label.Box.CenterY(), b.Label.Box.CenterY()
	if ay != by {
		return ay < by
	}
	ax, bx := a.Label.Box.CenterX(), b.Label.Box.CenterX()
	if ax != bx {
		return ax < bx
	}
	return a.Index < b.Index
}
