package makecode

import (
	"regexp"
	"strings"

	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// Normalizer resolves raw detector strings to catalog identifiers. The
// match order is: exact identifier, synonym table, then fuzzy similarity
// against all identifiers with a configurable acceptance threshold.
type Normalizer struct {
	catalog   *Catalog
	threshold float64
	log       *logger.Logger
}

func NewNormalizer(catalog *Catalog, threshold float64, log *logger.Logger) *Normalizer {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.72
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Normalizer{
		catalog:   catalog,
		threshold: threshold,
		log:       log.With("component", "normalizer"),
	}
}

// Photographed block text often arrives with Cyrillic lookalikes and a
// letter O where the pin digit 0 belongs ("PO" for "P0").
var (
	confusables = strings.NewReplacer(
		"Р", "P", "р", "p", // Р р
		"О", "O", "о", "o", // О о
	)
	pinRepair = regexp.MustCompile(`\bpo\b`)
)

// Normalize maps raw detections to canonical blocks, preserving input
// order. Labels that match nothing above the threshold are returned in
// the second slice; a miss is recoverable, never an error — a partial
// program is still useful to a student.
func (n *Normalizer) Normalize(labels []DetectedLabel) ([]CanonicalBlock, []DetectedLabel) {
	blocks := make([]CanonicalBlock, 0, len(labels))
	var dropped []DetectedLabel

	prevCategory := ""
	for i, lbl := range labels {
		key := cleanLabelKey(lbl.Text)
		if key == "" {
			dropped = append(dropped, lbl)
			continue
		}

		def := n.match(key, prevCategory)
		if def == nil {
			n.log.Debug("label dropped", "text", lbl.Text, "key", key)
			dropped = append(dropped, lbl)
			continue
		}

		prevCategory = def.Category
		blocks = append(blocks, CanonicalBlock{Def: def, Label: lbl, Index: i})
	}
	return blocks, dropped
}

func (n *Normalizer) match(key string, prevCategory string) *BlockDefinition {
	// Exact identifier match dominates everything else.
	if def, ok := n.catalog.byID[key]; ok {
		return def
	}
	if def, ok := n.catalog.bySyn[key]; ok {
		return def
	}

	type candidate struct {
		def  *BlockDefinition
		dist int
	}

	best := -1.0
	var cands []candidate
	for _, def := range n.catalog.defs {
		dist := levenshtein(key, def.key)
		sim := similarity(key, def.key, dist)
		if sim > best {
			best = sim
			cands = cands[:0]
			cands = append(cands, candidate{def: def, dist: dist})
		} else if sim == best {
			cands = append(cands, candidate{def: def, dist: dist})
		}
	}
	if best < n.threshold || len(cands) == 0 {
		return nil
	}

	// Tie-breaks, in order: stay in the previous match's category, then
	// shortest edit distance, then catalog declaration order.
	if prevCategory != "" {
		var same []candidate
		for _, c := range cands {
			if c.def.Category == prevCategory {
				same = append(same, c)
			}
		}
		if len(same) > 0 {
			cands = same
		}
	}

	winner := cands[0]
	for _, c := range cands[1:] {
		if c.dist < winner.dist || (c.dist == winner.dist && c.def.order < winner.def.order) {
			winner = c
		}
	}
	return winner.def
}

// cleanLabelKey scrubs OCR noise from a raw label and folds it to the
// catalog key form.
func cleanLabelKey(s string) string {
	s = confusables.Replace(s)
	key := NormalizeKey(s)
	key = pinRepair.ReplaceAllString(key, "p0")
	return key
}

// similarity is normalized edit distance: 1 - dist/maxLen.
func similarity(a, b string, dist int) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(max)
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
