package makecode

import (
	"testing"
)

func lbl(text string, x, y float64) DetectedLabel {
	return DetectedLabel{Text: text, Confidence: 0.9, Box: Box{X: x, Y: y}}
}

func TestNormalizeExactIdentifier(t *testing.T) {
	n := NewNormalizer(testCatalog(t), 0.72, nil)

	blocks, dropped := n.Normalize([]DetectedLabel{
		lbl("PAUSE", 0, 0),
		lbl("Show_Number", 0, 10),
	})
	if len(dropped) != 0 {
		t.Fatalf("dropped %d labels, want 0", len(dropped))
	}
	if len(blocks) != 2 || blocks[0].Def.ID != "pause" || blocks[1].Def.ID != "show_number" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}

func TestNormalizeSynonym(t *testing.T) {
	n := NewNormalizer(testCatalog(t), 0.72, nil)

	cases := map[string]string{
		"when program starts": "on_start",
		"press button a":      "on_button_a",
		"on button aa":        "on_button_ab", // A+B read as AA
		"send a message":      "radio_send_string",
	}
	for text, want := range cases {
		blocks, _ := n.Normalize([]DetectedLabel{lbl(text, 0, 0)})
		if len(blocks) != 1 {
			t.Fatalf("%q: matched %d blocks, want 1", text, len(blocks))
		}
		if got := blocks[0].Def.ID; got != want {
			t.Errorf("%q resolved to %q, want %q", text, got, want)
		}
	}
}

func TestNormalizeFuzzyMatch(t *testing.T) {
	n := NewNormalizer(testCatalog(t), 0.72, nil)

	blocks, dropped := n.Normalize([]DetectedLabel{lbl("show icon hart", 0, 0)})
	if len(dropped) != 0 {
		t.Fatalf("dropped %v, want none", dropped)
	}
	if len(blocks) != 1 || blocks[0].Def.ID != "show_icon_heart" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}

func TestNormalizeDropsNoise(t *testing.T) {
	n := NewNormalizer(testCatalog(t), 0.72, nil)

	blocks, dropped := n.Normalize([]DetectedLabel{
		lbl("xq7 zzw blob", 0, 0),
		lbl("play tone", 0, 10),
		lbl("   ", 0, 20),
	})
	if len(blocks) != 1 || blocks[0].Def.ID != "play_tone" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
	if blocks[0].Index != 1 {
		t.Fatalf("Index = %d, want original detection index 1", blocks[0].Index)
	}
	if len(dropped) != 2 || dropped[0].Text != "xq7 zzw blob" {
		t.Fatalf("unexpected dropped set: %+v", dropped)
	}
}

func TestNormalizeRepairsOCRArtifacts(t *testing.T) {
	n := NewNormalizer(testCatalog(t), 0.72, nil)

	cases := map[string]string{
		"TURN ON РО":  "turn_on_p0", // Cyrillic Р and О
		"Turn Off PO": "turn_off_p0",
	}
	for text, want := range cases {
		blocks, _ := n.Normalize([]DetectedLabel{lbl(text, 0, 0)})
		if len(blocks) != 1 {
			t.Fatalf("%q: matched %d blocks, want 1", text, len(blocks))
		}
		if got := blocks[0].Def.ID; got != want {
			t.Errorf("%q resolved to %q, want %q", text, got, want)
		}
	}
}

func TestNormalizeTieBreaks(t *testing.T) {
	cat, err := ParseCatalog([]byte(`version: 1
blocks:
  - {id: flash_red, category: music, role: leaf, template: a()}
  - {id: flash_rad, category: led, role: leaf, template: b()}
  - {id: beacon, category: led, role: leaf, template: c()}
`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	t.Run("previous category wins a tie", func(t *testing.T) {
		n := NewNormalizer(cat, 0.72, nil)
		blocks, _ := n.Normalize([]DetectedLabel{
			lbl("beacon", 0, 0),
			lbl("flash rod", 0, 10),
		})
		if len(blocks) != 2 || blocks[1].Def.ID != "flash_rad" {
			t.Fatalf("unexpected blocks: %+v", blocks)
		}
	})

	t.Run("catalog order wins without context", func(t *testing.T) {
		n := NewNormalizer(cat, 0.72, nil)
		blocks, _ := n.Normalize([]DetectedLabel{lbl("flash rod", 0, 0)})
		if len(blocks) != 1 || blocks[0].Def.ID != "flash_red" {
			t.Fatalf("unexpected blocks: %+v", blocks)
		}
	})

	t.Run("threshold is configurable", func(t *testing.T) {
		n := NewNormalizer(cat, 0.95, nil)
		blocks, dropped := n.Normalize([]DetectedLabel{lbl("flash rod", 0, 0)})
		if len(blocks) != 0 || len(dropped) != 1 {
			t.Fatalf("blocks=%v dropped=%v, want the label dropped", blocks, dropped)
		}
	})
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"pause", "pause", 0},
		{"heart", "hart", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
