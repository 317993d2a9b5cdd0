package tutor

import (
	"regexp"
	"strings"

	"github.com/yungbote/blockbridge-backend/internal/makecode"
)

// Suggestion is the tutor's structured reply to "what should I try next".
// Blocks lists display labels for the blocks the idea mentions, in the
// order they appear, so the UI can highlight them on the block palette.
type Suggestion struct {
	Encouragement string   `json:"encouragement"`
	Idea          string   `json:"idea"`
	Blocks        []string `json:"blocks"`
}

// DisplayLabel renders a catalog identifier the way block captions are
// printed on screen: "on_button_a" becomes "ON BUTTON A".
func DisplayLabel(def *makecode.BlockDefinition) string {
	return strings.ToUpper(makecode.NormalizeKey(def.ID))
}

// isTrigger reports whether a block starts a program fragment on its own.
// Event containers qualify; loop and logic containers only run inside one.
func isTrigger(def *makecode.BlockDefinition) bool {
	if def.Role != makecode.RoleContainer {
		return false
	}
	return def.Category != "loops" && def.Category != "logic"
}

// Labels returns the display labels the prompt templates advertise to the
// model, split into triggers and actions, both in catalog order.
func Labels(c *makecode.Catalog) (triggers, actions []string) {
	for _, def := range c.Defs() {
		switch {
		case isTrigger(def):
			triggers = append(triggers, DisplayLabel(def))
		case def.Role == makecode.RoleLeaf:
			actions = append(actions, DisplayLabel(def))
		}
	}
	return triggers, actions
}

var parenPat = regexp.MustCompile(`\(([^()]+)\)`)

// ExtractBlocks pulls block labels out of an idea's parenthesized
// mentions. Tokens resolve through the catalog's identifier and synonym
// tables, so model phrasings like "(on press A)" still land on a real
// block. Unresolvable tokens are skipped; duplicates keep their first
// position.
func ExtractBlocks(c *makecode.Catalog, idea string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range parenPat.FindAllStringSubmatch(idea, -1) {
		def, ok := resolveLabel(c, m[1])
		if !ok {
			continue
		}
		label := DisplayLabel(def)
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

func resolveLabel(c *makecode.Catalog, token string) (*makecode.BlockDefinition, bool) {
	if def, ok := c.Lookup(token); ok {
		return def, true
	}
	return c.LookupSynonym(token)
}

// ValidateBlocks enforces the shape of a teachable idea: exactly one
// trigger, one or two actions, and nothing else. Ideas that mention loop
// or logic containers, or no blocks at all, are rejected so the student
// always gets a runnable trigger-plus-action pair.
func ValidateBlocks(c *makecode.Catalog, labels []string) bool {
	var triggers, actions int
	for _, label := range labels {
		def, ok := resolveLabel(c, label)
		switch {
		case !ok:
			return false
		case isTrigger(def):
			triggers++
		case def.Role == makecode.RoleLeaf:
			actions++
		default:
			return false
		}
	}
	return triggers == 1 && actions >= 1 && actions <= 2
}

// ruleSuggestion builds a deterministic suggestion from the program
// analysis alone. It backs the tutor when no language model is reachable
// and when a model reply fails validation twice, so it must always return
// an idea whose parenthesized labels pass ValidateBlocks.
func ruleSuggestion(a Analysis) Suggestion {
	s := Suggestion{Encouragement: ruleEncouragement(a)}

	switch {
	case a.Radio && a.hasAction("show_icon"):
		s.Idea = "What if a happy face (SHOW ICON HAPPY) popped up every time a radio message arrives (ON RADIO RECEIVED)?"
	case a.hasTrigger("button_A") && a.hasAction("show_icon") && !a.Radio:
		s.Idea = "What if pressing the button (ON BUTTON A) also played a cheerful sound (PLAY SOUND HAPPY) right after your icon?"
	case a.hasTrigger("sound_Loud"):
		s.Idea = "What if a loud sound (ON LOUD SOUND) made the micro:bit giggle (PLAY SOUND GIGGLE) and show a happy face (SHOW ICON HAPPY)?"
	case a.hasAction("write_digital_pin"):
		s.Idea = "What if button B (ON BUTTON B) turned your pin back off (TURN OFF P0)?"
	case a.hasTrigger("button_A") && !a.hasTrigger("button_B"):
		s.Idea = "What if button B (ON BUTTON B) showed something different, like a sad face (SHOW ICON SAD)?"
	case a.hasAction("show_string"):
		s.Idea = "What if shaking the micro:bit (ON SHAKE) scrolled a secret message (SHOW STRING)?"
	default:
		s.Idea = "What if shaking the micro:bit (ON SHAKE) played a sound (PLAY SOUND HAPPY)?"
	}

	s.Blocks = extractCatalogTokens(s.Idea)
	return s
}

// extractCatalogTokens mirrors ExtractBlocks for the rule table, where
// every parenthesized token is already a display label.
func extractCatalogTokens(idea string) []string {
	var out []string
	for _, m := range parenPat.FindAllStringSubmatch(idea, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// ruleEncouragement names something concrete the student actually did.
// Generic praise reads as canned; naming the technique does not.
func ruleEncouragement(a Analysis) string {
	var parts []string
	if a.hasTrigger("button_A") && a.hasTrigger("button_B") {
		parts = append(parts, "using both buttons")
	}
	if a.Radio {
		parts = append(parts, "talking over radio")
	}
	if len(a.Pins) > 0 {
		parts = append(parts, "controlling pin "+a.Pins[0])
	}
	if a.hasAction("show_icon") {
		parts = append(parts, "drawing icons on the screen")
	}
	if a.hasAction("play_tone") || a.hasAction("play_sound") {
		parts = append(parts, "making music")
	}
	if a.hasLogic("conditional") {
		parts = append(parts, "making decisions with logic")
	}
	if a.hasLogic("loop") {
		parts = append(parts, "repeating steps with loops")
	}

	switch len(parts) {
	case 0:
		return "You built a real program - keep experimenting!"
	case 1:
		return "Great work! You're " + parts[0] + " - that's real programming!"
	default:
		last := parts[len(parts)-1]
		return "Amazing! You're " + strings.Join(parts[:len(parts)-1], ", ") + " and " + last + " - that's smart thinking!"
	}
}
