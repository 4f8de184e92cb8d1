// Package display renders received bytes on three seven-segment digits.
package display

import (
	"fmt"
	"strings"
)

// Segments is a seven-segment pattern, bit 0 is segment a through bit 6
// is segment g. A set bit lights the segment.
type Segments uint8

// Segment bits.
const (
	SegA Segments = 1 << iota
	SegB
	SegC
	SegD
	SegE
	SegF
	SegG
)

// Blank lights nothing.
const Blank Segments = 0

var glyphs = [10]Segments{
	SegA | SegB | SegC | SegD | SegE | SegF,
	SegB | SegC,
	SegA | SegB | SegD | SegE | SegG,
	SegA | SegB | SegC | SegD | SegG,
	SegB | SegC | SegF | SegG,
	SegA | SegC | SegD | SegF | SegG,
	SegA | SegC | SegD | SegE | SegF | SegG,
	SegA | SegB | SegC,
	SegA | SegB | SegC | SegD | SegE | SegF | SegG,
	SegA | SegB | SegC | SegD | SegF | SegG,
}

// Glyph returns the pattern of a decimal digit, Blank if d > 9.
func Glyph(d uint8) Segments {
	if int(d) >= len(glyphs) {
		return Blank
	}
	return glyphs[d]
}

// Digits splits v into hundreds, tens and ones.
func Digits(v byte) [3]uint8 {
	return [3]uint8{v / 100, v / 10 % 10, v % 10}
}

// ActiveLow returns the pattern for common anode drivers.
func (s Segments) ActiveLow() uint8 {
	return ^uint8(s) & 0x7f
}

// Has indicates all segments in m are lit.
func (s Segments) Has(m Segments) bool {
	return s&m == m
}

// Lines renders the pattern as three rows of ASCII art.
func (s Segments) Lines() [3]string {
	pick := func(m Segments, on string) string {
		if s.Has(m) {
			return on
		}
		return " "
	}
	return [3]string{
		" " + pick(SegA, "_") + " ",
		pick(SegF, "|") + pick(SegG, "_") + pick(SegB, "|"),
		pick(SegE, "|") + pick(SegD, "_") + pick(SegC, "|"),
	}
}

func (s Segments) String() string {
	l := s.Lines()
	return strings.Join(l[:], "\n")
}

// Display holds the last value shown.
type Display struct {
	value  byte
	shown  bool
	glyphs [3]Segments
}

// Show updates the display with v.
func (d *Display) Show(v byte) {
	d.value, d.shown = v, true
	for i, digit := range Digits(v) {
		d.glyphs[i] = Glyph(digit)
	}
}

// Value returns the value shown and whether anything has been shown.
func (d *Display) Value() (byte, bool) {
	return d.value, d.shown
}

// Glyphs returns the digit patterns, most significant first. All are
// Blank until a value is shown.
func (d *Display) Glyphs() [3]Segments {
	return d.glyphs
}

// Clear blanks the display.
func (d *Display) Clear() {
	*d = Display{}
}

// Render draws the three digits side by side.
func (d *Display) Render() string {
	return Render(d.glyphs[:]...)
}

// Render draws digit patterns side by side.
func Render(glyphs ...Segments) string {
	if len(glyphs) == 0 {
		return ""
	}
	var rows [3][]string
	for _, g := range glyphs {
		for i, l := range g.Lines() {
			rows[i] = append(rows[i], l)
		}
	}
	var sb strings.Builder
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(r, " "))
	}
	return sb.String()
}

func (d *Display) String() string {
	if !d.shown {
		return "---"
	}
	return fmt.Sprintf("%03d", d.value)
}
