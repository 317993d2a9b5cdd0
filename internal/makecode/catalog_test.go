package makecode

import (
	"strings"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}
	return c
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	c := testCatalog(t)
	if c.Len() == 0 {
		t.Fatalf("embedded catalog is empty")
	}

	if _, ok := c.Lookup(ImplicitContainerID); !ok {
		t.Fatalf("catalog must define %q", ImplicitContainerID)
	}

	for _, def := range c.Defs() {
		if def.Role == RoleContainer && strings.Count(def.Template, "{{body}}") != 1 {
			t.Errorf("%s: container template needs exactly one body slot", def.ID)
		}
		if def.Role == RoleLeaf && strings.Contains(def.Template, "{{body}}") {
			t.Errorf("%s: leaf template must not contain a body slot", def.ID)
		}
	}
}

func TestCatalogCoversRecognizedBlockSurface(t *testing.T) {
	c := testCatalog(t)

	ids := []string{
		"on_start", "forever",
		"on_button_a", "on_button_b", "on_button_ab",
		"on_shake", "on_logo_pressed",
		"pause",
		"show_icon_heart", "show_icon_small_heart", "show_icon_happy",
		"show_icon_sad", "show_icon_yes", "show_icon_no",
		"show_string", "show_number", "clear_screen", "show_leds",
		"play_sound_happy", "play_sound_sad", "play_sound_hello",
		"play_sound_giggle", "play_tone", "stop_sound",
		"turn_on_p0", "turn_on_p1", "turn_on_p2",
		"turn_off_p0", "turn_off_p1", "turn_off_p2",
		"digital_read_p0", "digital_read_p1", "digital_read_p2",
		"radio_set_group", "radio_send_string", "on_radio_received",
		"repeat_times", "while_true",
		"if_button_a", "if_button_b",
		"set_variable", "change_variable",
	}
	for _, id := range ids {
		def, ok := c.Lookup(id)
		if !ok {
			t.Errorf("catalog missing %q", id)
			continue
		}
		if def.ID != id {
			t.Errorf("Lookup(%q) resolved to %q", id, def.ID)
		}
	}
}

func TestShowLedsTemplateIsGridLiteral(t *testing.T) {
	c := testCatalog(t)

	def, ok := c.Lookup("show_leds")
	if !ok {
		t.Fatalf("catalog missing show_leds")
	}
	if def.Role != RoleLeaf {
		t.Fatalf("show_leds role = %q, want leaf", def.Role)
	}
	if !strings.HasPrefix(def.Template, "basic.showLeds(`") {
		t.Fatalf("show_leds template does not call basic.showLeds: %q", def.Template)
	}

	var rows int
	for _, line := range strings.Split(def.Template, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ".") || strings.HasPrefix(line, "#") {
			rows++
			if cells := strings.Fields(line); len(cells) != 5 {
				t.Errorf("grid row %q has %d cells, want 5", line, len(cells))
			}
		}
	}
	if rows != 5 {
		t.Fatalf("show_leds grid has %d rows, want 5", rows)
	}
}

func TestLookupIsCaseAndSeparatorInsensitive(t *testing.T) {
	c := testCatalog(t)

	for _, id := range []string{"on_button_a", "ON_BUTTON_A", "On Button A", "  on  button  a "} {
		def, ok := c.Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%q) missed", id)
		}
		if def.ID != "on_button_a" {
			t.Fatalf("Lookup(%q) = %q, want on_button_a", id, def.ID)
		}
	}
}

func TestParseCatalogRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "no blocks",
			doc:  "version: 1\nblocks: []\n",
			want: "no blocks",
		},
		{
			name: "duplicate id",
			doc: `version: 1
blocks:
  - {id: pause, category: basic, role: leaf, template: basic.pause(100)}
  - {id: PAUSE, category: basic, role: leaf, template: basic.pause(200)}
`,
			want: "duplicate id",
		},
		{
			name: "unknown category",
			doc: `version: 1
blocks:
  - {id: pause, category: snacks, role: leaf, template: basic.pause(100)}
`,
			want: "unknown category",
		},
		{
			name: "container without body",
			doc: `version: 1
blocks:
  - {id: forever, category: basic, role: container, template: "basic.forever()"}
`,
			want: "exactly one {{body}}",
		},
		{
			name: "leaf with body",
			doc: `version: 1
blocks:
  - {id: pause, category: basic, role: leaf, template: "{{body}}"}
`,
			want: "must not contain",
		},
		{
			name: "slot without default",
			doc: `version: 1
blocks:
  - {id: pause, category: basic, role: leaf, template: "basic.pause({{ms}})"}
`,
			want: "no default",
		},
		{
			name: "ambiguous synonym",
			doc: `version: 1
blocks:
  - {id: pause, category: basic, role: leaf, template: basic.pause(100), synonyms: [wait]}
  - {id: rest, category: music, role: leaf, template: music.rest(), synonyms: [wait]}
`,
			want: "synonym",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.doc))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"On_Button_A":    "on button a",
		"  SHOW  HEART ": "show heart",
		"pause":          "pause",
	}
	for in, want := range cases {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
