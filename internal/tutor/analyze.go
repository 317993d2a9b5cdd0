package tutor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Analysis summarizes what a generated program does, extracted from the
// emitted source rather than the block tree so it also works on code
// fetched from an earlier submission.
type Analysis struct {
	Triggers  []string
	Actions   []string
	Pins      []string
	Logic     []string
	Icons     []string
	Messages  []string
	Radio     bool
	Structure string
	Words     int
}

var (
	buttonPat  = regexp.MustCompile(`onButtonPressed\(Button\.([AB]+)`)
	gesturePat = regexp.MustCompile(`onGesture\(Gesture\.(\w+)`)
	soundPat   = regexp.MustCompile(`onSound\(DetectedSound\.(\w+)`)
	iconPat    = regexp.MustCompile(`IconNames\.(\w+)`)
	stringPat  = regexp.MustCompile(`showString\("([^"]*)"`)
	sendPat    = regexp.MustCompile(`radio\.sendString\("([^"]*)"`)
	pinPat     = regexp.MustCompile(`DigitalPin\.(P[0-2])`)
)

// Analyze inspects emitted MakeCode JavaScript for the constructs the
// catalog can produce plus the comparison/branch patterns students add by
// hand in the MakeCode editor.
func Analyze(code string) Analysis {
	a := Analysis{Structure: "simple", Words: len(strings.Fields(code))}

	for _, m := range buttonPat.FindAllStringSubmatch(code, -1) {
		a.Triggers = append(a.Triggers, "button_"+m[1])
	}
	for _, m := range gesturePat.FindAllStringSubmatch(code, -1) {
		a.Triggers = append(a.Triggers, "gesture_"+m[1])
	}
	for _, m := range soundPat.FindAllStringSubmatch(code, -1) {
		a.Triggers = append(a.Triggers, "sound_"+m[1])
	}
	if strings.Contains(code, "onLogoEvent") {
		a.Triggers = append(a.Triggers, "logo_pressed")
	}
	if strings.Contains(code, "radio.onReceivedString") {
		a.Triggers = append(a.Triggers, "radio_message")
		a.Radio = true
	}
	if strings.Contains(code, "// on start") {
		a.Triggers = append(a.Triggers, "start")
	}
	if strings.Contains(code, "basic.forever") {
		a.Triggers = append(a.Triggers, "forever")
	}

	if ms := iconPat.FindAllStringSubmatch(code, -1); len(ms) > 0 {
		a.Actions = append(a.Actions, "show_icon")
		for _, m := range ms {
			a.Icons = append(a.Icons, m[1])
		}
	}
	if ms := stringPat.FindAllStringSubmatch(code, -1); len(ms) > 0 {
		a.Actions = append(a.Actions, "show_string")
		for _, m := range ms {
			a.Messages = append(a.Messages, m[1])
		}
	}
	if strings.Contains(code, "showNumber") {
		a.Actions = append(a.Actions, "show_number")
	}
	if strings.Contains(code, "playTone") {
		a.Actions = append(a.Actions, "play_tone")
	}
	if strings.Contains(code, "builtinPlayableSoundEffect") {
		a.Actions = append(a.Actions, "play_sound")
	}
	if strings.Contains(code, "led.plot") || strings.Contains(code, "led.unplot") || strings.Contains(code, "led.toggle") {
		a.Actions = append(a.Actions, "draw_led")
	}
	if strings.Contains(code, "clearScreen") {
		a.Actions = append(a.Actions, "clear_screen")
	}
	if strings.Contains(code, "basic.pause") {
		a.Actions = append(a.Actions, "pause")
	}
	if strings.Contains(code, "radio.sendString") || strings.Contains(code, "radio.sendNumber") {
		a.Actions = append(a.Actions, "send_radio_message")
		a.Radio = true
		for _, m := range sendPat.FindAllStringSubmatch(code, -1) {
			a.Messages = append(a.Messages, m[1])
		}
	}
	if strings.Contains(code, "radio.setGroup") {
		a.Radio = true
	}
	if strings.Contains(code, "digitalWritePin") {
		a.Actions = append(a.Actions, "write_digital_pin")
		for _, m := range pinPat.FindAllStringSubmatch(code, -1) {
			a.Pins = append(a.Pins, m[1])
		}
	}
	if strings.Contains(code, "control.reset") {
		a.Actions = append(a.Actions, "reset")
	}

	if strings.Contains(code, "if (") {
		a.Logic = append(a.Logic, "conditional")
		if strings.Contains(code, "&&") {
			a.Logic = append(a.Logic, "and_condition")
		}
		if strings.Contains(code, "||") {
			a.Logic = append(a.Logic, "or_condition")
		}
		if strings.Contains(code, "<") || strings.Contains(code, ">") {
			a.Logic = append(a.Logic, "comparison")
		}
	}
	if strings.Contains(code, "else") {
		a.Logic = append(a.Logic, "else_branch")
	}
	if strings.Contains(code, "for (") || strings.Contains(code, "while (") {
		a.Logic = append(a.Logic, "loop")
	}

	switch n := strings.Count(code, "if ("); {
	case n > 1:
		a.Structure = "complex"
	case n == 1:
		a.Structure = "conditional"
	}

	a.Triggers = dedupeSorted(a.Triggers)
	a.Actions = dedupeSorted(a.Actions)
	a.Pins = dedupeSorted(a.Pins)
	a.Logic = dedupeSorted(a.Logic)
	a.Icons = dedupeSorted(a.Icons)

	return a
}

// Signature keys the response cache. Programs with the same trigger,
// action, pin and logic pattern share a cached tutor reply even when the
// literal code differs.
func (a Analysis) Signature() string {
	return fmt.Sprintf("triggers:%s|actions:%s|pins:%s|logic:%s|len:%d",
		strings.Join(a.Triggers, ","),
		strings.Join(a.Actions, ","),
		strings.Join(a.Pins, ","),
		strings.Join(a.Logic, ","),
		a.Words,
	)
}

func (a Analysis) hasTrigger(name string) bool { return contains(a.Triggers, name) }

func (a Analysis) hasAction(name string) bool { return contains(a.Actions, name) }

func (a Analysis) hasLogic(name string) bool { return contains(a.Logic, name) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dedupeSorted(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
