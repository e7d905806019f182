package console

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Style carries the text attributes a segment was printed with. Colors are
// the string forms lipgloss understands ("212", "#ff0000", "red") so the
// server can rebuild an equivalent style.
type Style struct {
	Foreground    string `cbor:"fg,omitempty" json:"foreground,omitempty"`
	Background    string `cbor:"bg,omitempty" json:"background,omitempty"`
	Bold          bool   `cbor:"bold,omitempty" json:"bold,omitempty"`
	Faint         bool   `cbor:"faint,omitempty" json:"faint,omitempty"`
	Italic        bool   `cbor:"italic,omitempty" json:"italic,omitempty"`
	Underline     bool   `cbor:"underline,omitempty" json:"underline,omitempty"`
	Strikethrough bool   `cbor:"strike,omitempty" json:"strikethrough,omitempty"`
}

// IsZero reports whether the style carries no attributes at all.
func (s Style) IsZero() bool {
	return s == Style{}
}

// StyleFromLipgloss extracts the wire-relevant attributes from a lipgloss
// style, so applications already styling their output with lipgloss can
// ship the same look to the devtools server.
func StyleFromLipgloss(ls lipgloss.Style) Style {
	return Style{
		Foreground:    colorString(ls.GetForeground()),
		Background:    colorString(ls.GetBackground()),
		Bold:          ls.GetBold(),
		Faint:         ls.GetFaint(),
		Italic:        ls.GetItalic(),
		Underline:     ls.GetUnderline(),
		Strikethrough: ls.GetStrikethrough(),
	}
}

func colorString(c lipgloss.TerminalColor) string {
	switch v := c.(type) {
	case lipgloss.Color:
		return string(v)
	case lipgloss.ANSIColor:
		return strconv.FormatUint(uint64(v), 10)
	case lipgloss.AdaptiveColor:
		return v.Dark
	default:
		return ""
	}
}
