// Package output renders storax's human-facing terminal text: styled
// status lines, bordered boxes, and tables, with ASCII and no-color
// fallbacks. Only the CLI layer uses it — core packages return typed
// values and log through pkg/storaxlog instead.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ColorSupport classifies a terminal's color capability.
type ColorSupport int

const (
	ColorNone  ColorSupport = iota // no color
	ColorBasic                     // basic 16 colors
	ColorFull                      // 256/true color
)

// borderSet is one family of box/table drawing characters.
type borderSet struct {
	topLeft, topRight       string
	bottomLeft, bottomRight string
	cross                   string
	teeDown, teeUp          string
	teeRight, teeLeft       string
	horizontal, vertical    string
}

var (
	unicodeBorders = borderSet{
		topLeft: "┌", topRight: "┐",
		bottomLeft: "└", bottomRight: "┘",
		cross:   "┼",
		teeDown: "┬", teeUp: "┴",
		teeRight: "├", teeLeft: "┤",
		horizontal: "─", vertical: "│",
	}
	asciiBorders = borderSet{
		topLeft: "+", topRight: "+",
		bottomLeft: "+", bottomRight: "+",
		cross:   "+",
		teeDown: "+", teeUp: "+",
		teeRight: "+", teeLeft: "+",
		horizontal: "-", vertical: "|",
	}
)

// Console writes styled terminal output.
type Console struct {
	colorEnabled bool
	colorSupport ColorSupport
	writer       io.Writer
	styler       *Styler
}

// NewConsole creates a Console on writer, probing it (and the TERM,
// COLORTERM, and NO_COLOR environment) for color capability.
func NewConsole(writer io.Writer) *Console {
	c := &Console{writer: writer}
	c.colorSupport = c.DetectColorSupport()
	c.colorEnabled = c.colorSupport != ColorNone
	c.styler = NewStyler(c.colorEnabled)
	return c
}

// DetectColorSupport classifies the writer's color capability.
func (c *Console) DetectColorSupport() ColorSupport {
	if f, ok := c.writer.(*os.File); ok && !isTerminal(f) {
		return ColorNone
	}

	term := os.Getenv("TERM")
	if term == "dumb" || os.Getenv("NO_COLOR") != "" {
		return ColorNone
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" ||
		strings.Contains(term, "256color") || strings.Contains(term, "truecolor") {
		return ColorFull
	}

	if strings.Contains(term, "color") || term == "xterm" || term == "screen" {
		return ColorBasic
	}
	return ColorNone
}

// SetColorEnabled enables or disables color output. Enabling is capped by
// what the terminal actually supports.
func (c *Console) SetColorEnabled(enabled bool) {
	c.colorEnabled = enabled && c.colorSupport != ColorNone
	c.styler = NewStyler(c.colorEnabled)
}

// statusLine prints one symbol-prefixed message, falling back to a plain
// tag when color is off.
func (c *Console) statusLine(symbol, fallback, message string, paint func(string) string) {
	if !c.colorEnabled {
		fmt.Fprintf(c.writer, "%s %s\n", fallback, message)
		return
	}
	fmt.Fprintf(c.writer, "%s %s\n", paint(symbol), message)
}

// Success prints message behind a green check mark.
func (c *Console) Success(format string, args ...interface{}) {
	c.statusLine("✓", "[OK]", fmt.Sprintf(format, args...), c.styler.Green)
}

// Error prints message behind a red cross.
func (c *Console) Error(format string, args ...interface{}) {
	c.statusLine("✗", "[ERROR]", fmt.Sprintf(format, args...), c.styler.Red)
}

// Warning prints message behind a yellow warning sign.
func (c *Console) Warning(format string, args ...interface{}) {
	c.statusLine("⚠", "[WARN]", fmt.Sprintf(format, args...), c.styler.Yellow)
}

// Info prints message with no decoration.
func (c *Console) Info(format string, args ...interface{}) {
	fmt.Fprintf(c.writer, format+"\n", args...)
}

// borders picks the drawing charset matching the terminal's capability.
func (c *Console) borders() borderSet {
	if c.colorEnabled {
		return unicodeBorders
	}
	return asciiBorders
}

// Box draws content inside a border with a centered, bold title.
func (c *Console) Box(title string, content []string) {
	if len(content) == 0 {
		return
	}
	b := c.borders()

	width := len(title)
	for _, line := range content {
		if len(line) > width {
			width = len(line)
		}
	}
	inner := width + 2

	fmt.Fprintf(c.writer, "%s%s%s\n", b.topLeft, strings.Repeat(b.horizontal, inner), b.topRight)
	if title != "" {
		pad := inner - len(title)
		left := pad / 2
		fmt.Fprintf(c.writer, "%s%s%s%s%s\n",
			b.vertical, strings.Repeat(" ", left), c.styler.Bold(title), strings.Repeat(" ", pad-left), b.vertical)
		fmt.Fprintf(c.writer, "%s%s%s\n", b.vertical, strings.Repeat(b.horizontal, inner), b.vertical)
	}
	for _, line := range content {
		fmt.Fprintf(c.writer, "%s %s%s %s\n",
			b.vertical, line, strings.Repeat(" ", width-len(line)), b.vertical)
	}
	fmt.Fprintf(c.writer, "%s%s%s\n", b.bottomLeft, strings.Repeat(b.horizontal, inner), b.bottomRight)
}

// Table prints rows under bold headers, sizing each column to its widest
// cell.
func (c *Console) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}
	b := c.borders()

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	rule := func(left, join, right string) {
		fmt.Fprint(c.writer, left)
		for i, w := range widths {
			fmt.Fprint(c.writer, strings.Repeat(b.horizontal, w+2))
			if i < len(widths)-1 {
				fmt.Fprint(c.writer, join)
			}
		}
		fmt.Fprintln(c.writer, right)
	}

	rule(b.topLeft, b.teeDown, b.topRight)

	fmt.Fprint(c.writer, b.vertical)
	for i, h := range headers {
		fmt.Fprintf(c.writer, " %s%s %s", c.styler.Bold(h), strings.Repeat(" ", widths[i]-len(h)), b.vertical)
	}
	fmt.Fprintln(c.writer)

	rule(b.teeRight, b.cross, b.teeLeft)

	for _, row := range rows {
		fmt.Fprint(c.writer, b.vertical)
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(c.writer, " %s%s %s", cell, strings.Repeat(" ", widths[i]-len(cell)), b.vertical)
			}
		}
		fmt.Fprintln(c.writer)
	}

	rule(b.bottomLeft, b.teeUp, b.bottomRight)
}

// isTerminal reports whether f is attached to a character device.
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
