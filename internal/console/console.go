// Package console implements the capture surface for the devtools client: a
// recording console that renders arbitrary values into styled segments
// instead of writing to a terminal. Segments accumulate in a buffer until
// they are extracted for shipping, and the console tracks the remote
// display's dimensions so output wraps the way the server will show it.
package console

import (
	"fmt"
	"strings"
	"sync"

	"github.com/muesli/reflow/wordwrap"
)

const (
	// DefaultWidth is used until the server reports its real geometry.
	DefaultWidth = 80
	// DefaultHeight is used until the server reports its real geometry.
	DefaultHeight = 24
)

// Segment is one run of text with a single style, the unit the devtools
// server re-renders on its side. A nil Style means unstyled text.
type Segment struct {
	Text  string `cbor:"text" json:"text"`
	Style *Style `cbor:"style,omitempty" json:"style,omitempty"`
}

// Console records everything printed to it as segments. Safe for
// concurrent use; extraction is atomic with respect to concurrent prints.
type Console struct {
	mu     sync.Mutex
	width  int
	height int
	buffer []Segment
}

// New returns a console at the default geometry.
func New() *Console {
	return &Console{
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Print renders objects separated by spaces, wraps the result to the
// console width and appends the lines to the record buffer.
func (c *Console) Print(objects ...any) {
	c.PrintStyled(Style{}, objects...)
}

// PrintStyled is Print with an explicit style applied to every produced
// segment.
func (c *Console) PrintStyled(style Style, objects ...any) {
	text := renderObjects(objects)

	c.mu.Lock()
	defer c.mu.Unlock()

	var stylePtr *Style
	if !style.IsZero() {
		s := style
		stylePtr = &s
	}

	wrapped := wordwrap.String(text, c.width)
	for _, line := range strings.Split(wrapped, "\n") {
		if line != "" {
			c.buffer = append(c.buffer, Segment{Text: line, Style: stylePtr})
		}
		c.buffer = append(c.buffer, Segment{Text: "\n"})
	}
}

// ExportSegments returns the segments recorded since the last extraction
// and clears the buffer. The two steps happen under one lock so a
// concurrent Print can never be half-extracted.
func (c *Console) ExportSegments() []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	segments := c.buffer
	c.buffer = nil
	return segments
}

// Size returns the current rendering geometry.
func (c *Console) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// SetSize updates the rendering geometry. Called by the client's listener
// when the server reports its display dimensions; non-positive values are
// ignored.
func (c *Console) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

func renderObjects(objects []any) string {
	if len(objects) == 0 {
		return ""
	}

	parts := make([]string, 0, len(objects))
	for _, obj := range objects {
		parts = append(parts, fmt.Sprint(obj))
	}
	return strings.Join(parts, " ")
}
