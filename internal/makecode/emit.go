package makecode

import (
	"strings"
)

// PlaceholderComment is emitted when recognition found no usable blocks.
const PlaceholderComment = "// no blocks detected"

const indentUnit = "    "

// Emitter renders a program tree to MakeCode JavaScript. Rendering is
// deterministic: identical trees produce byte-identical text, which the
// tutor cache and the tests rely on.
type Emitter struct{}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Emit walks the tree depth-first in pre-order. Containers render their
// opening lines, children one indent level deeper, then closing lines;
// leaves render their template with argument slots filled from catalog
// defaults. Top-level containers are separated by a blank line.
func (e *Emitter) Emit(tree *ProgramTree) string {
	if tree.Empty() {
		return PlaceholderComment + "\n"
	}

	var b strings.Builder
	for i, root := range tree.Roots {
		if i > 0 {
			b.WriteString("\n")
		}
		renderNode(&b, root, 0)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *Node, depth int) {
	if n == nil || n.Block.Def == nil {
		return
	}
	def := n.Block.Def
	text := fillSlots(def.Template, def.Defaults)

	if def.Role == RoleLeaf {
		// Most leaves are one statement; LED-grid literals span lines.
		for _, line := range strings.Split(text, "\n") {
			writeLine(b, line, depth)
		}
		return
	}

	lines := strings.Split(text, "\n")
	bodyAt := len(lines)
	for i, line := range lines {
		if strings.TrimSpace(line) == "{{"+bodySlot+"}}" {
			bodyAt = i
			break
		}
	}

	for _, line := range lines[:bodyAt] {
		writeLine(b, line, depth)
	}
	for _, child := range n.Children {
		renderNode(b, child, depth+1)
	}
	if bodyAt < len(lines) {
		for _, line := range lines[bodyAt+1:] {
			writeLine(b, line, depth)
		}
	}
}

func writeLine(b *strings.Builder, line string, depth int) {
	if strings.TrimSpace(line) == "" {
		b.WriteString("\n")
		return
	}
	b.WriteString(strings.Repeat(indentUnit, depth))
	b.WriteString(line)
	b.WriteString("\n")
}

// fillSlots substitutes every non-body slot with its catalog default.
// Catalog validation guarantees a default exists for each slot.
func fillSlots(template string, defaults map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := slotPattern.FindStringSubmatch(m)[1]
		if name == bodySlot {
			return m
		}
		return defaults[name]
	})
}
