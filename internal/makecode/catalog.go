package makecode

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// BlockDefinition is one entry of the static block catalog.
type BlockDefinition struct {
	ID          string            `yaml:"id" json:"id"`
	Category    string            `yaml:"category" json:"category"`
	Role        Role              `yaml:"role" json:"role"`
	Description string            `yaml:"description" json:"description"`
	Template    string            `yaml:"template" json:"-"`
	Synonyms    []string          `yaml:"synonyms,omitempty" json:"-"`
	Defaults    map[string]string `yaml:"defaults,omitempty" json:"-"`

	order int
	key   string // NormalizeKey(ID), precomputed for matching
}

type catalogDoc struct {
	Version int                `yaml:"version"`
	Blocks  []*BlockDefinition `yaml:"blocks"`
}

// Catalog is the immutable block table. It is loaded once at startup and
// shared read-only across requests, so no locking is needed.
type Catalog struct {
	defs  []*BlockDefinition
	byID  map[string]*BlockDefinition
	bySyn map[string]*BlockDefinition
}

//go:embed catalog.yaml
var embeddedCatalog []byte

var slotPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

const bodySlot = "body"

// LoadCatalog parses the catalog at path, or the embedded one when path is
// empty. Any error here is fatal to the caller: no block can be rendered
// without a catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data := embeddedCatalog
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("catalog has no blocks")
	}

	validCategory := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		validCategory[c] = true
	}

	c := &Catalog{
		defs:  make([]*BlockDefinition, 0, len(doc.Blocks)),
		byID:  make(map[string]*BlockDefinition, len(doc.Blocks)),
		bySyn: make(map[string]*BlockDefinition),
	}

	for i, def := range doc.Blocks {
		if def == nil {
			continue
		}
		def.ID = strings.TrimSpace(def.ID)
		if def.ID == "" {
			return nil, fmt.Errorf("catalog block %d: missing id", i)
		}
		key := NormalizeKey(def.ID)
		if _, dup := c.byID[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %q", def.ID)
		}
		if !validCategory[def.Category] {
			return nil, fmt.Errorf("catalog %q: unknown category %q", def.ID, def.Category)
		}
		if def.Role != RoleContainer && def.Role != RoleLeaf {
			return nil, fmt.Errorf("catalog %q: role must be container or leaf", def.ID)
		}
		if strings.TrimSpace(def.Template) == "" {
			return nil, fmt.Errorf("catalog %q: missing template", def.ID)
		}
		def.Template = strings.TrimRight(def.Template, "\n")

		if err := validateTemplate(def); err != nil {
			return nil, err
		}

		def.order = len(c.defs)
		def.key = key
		c.defs = append(c.defs, def)
		c.byID[key] = def

		for _, syn := range def.Synonyms {
			sk := NormalizeKey(syn)
			if sk == "" {
				continue
			}
			if prev, dup := c.bySyn[sk]; dup && prev != def {
				return nil, fmt.Errorf("catalog: synonym %q claimed by both %q and %q", syn, prev.ID, def.ID)
			}
			c.bySyn[sk] = def
		}
	}

	return c, nil
}

// validateTemplate enforces the template invariants: a container template
// holds exactly one {{body}} slot alone on its line; a leaf template never
// contains {{body}} (but may span lines, e.g. an LED grid literal); every
// other slot has a default value.
func validateTemplate(def *BlockDefinition) error {
	bodyCount := 0
	for _, m := range slotPattern.FindAllStringSubmatch(def.Template, -1) {
		slot := m[1]
		if slot == bodySlot {
			bodyCount++
			continue
		}
		if _, ok := def.Defaults[slot]; !ok {
			return fmt.Errorf("catalog %q: slot {{%s}} has no default", def.ID, slot)
		}
	}

	switch def.Role {
	case RoleContainer:
		if bodyCount != 1 {
			return fmt.Errorf("catalog %q: container template must contain exactly one {{body}}, found %d", def.ID, bodyCount)
		}
		for _, line := range strings.Split(def.Template, "\n") {
			if strings.Contains(line, "{{body}}") && strings.TrimSpace(line) != "{{body}}" {
				return fmt.Errorf("catalog %q: {{body}} must be alone on its line", def.ID)
			}
		}
	case RoleLeaf:
		if bodyCount != 0 {
			return fmt.Errorf("catalog %q: leaf template must not contain {{body}}", def.ID)
		}
	}
	return nil
}

// Lookup finds a definition by identifier (case and separator insensitive).
func (c *Catalog) Lookup(id string) (*BlockDefinition, bool) {
	def, ok := c.byID[NormalizeKey(id)]
	return def, ok
}

// LookupSynonym finds a definition by a synonym-table entry.
func (c *Catalog) LookupSynonym(s string) (*BlockDefinition, bool) {
	def, ok := c.bySyn[NormalizeKey(s)]
	return def, ok
}

// Defs returns the definitions in declaration order. Callers must not
// mutate the returned slice or its entries.
func (c *Catalog) Defs() []*BlockDefinition {
	return c.defs
}

func (c *Catalog) Len() int {
	return len(c.defs)
}

// NormalizeKey folds case, treats underscores as spaces, and collapses
// whitespace runs, so "On_Button_A" and "on button a" hit the same key.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
