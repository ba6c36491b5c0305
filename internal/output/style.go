package output

import (
	"fmt"
	"strings"
)

// Color is a basic ANSI foreground/background color.
type Color int

const (
	ColorDefault Color = iota
	ColorBlack
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
)

// Style combines colors and text attributes.
type Style struct {
	FgColor   Color
	BgColor   Color
	Bold      bool
	Italic    bool
	Underline bool
}

// Styler renders text with ANSI escape codes, or passes it through
// untouched when styling is disabled.
type Styler struct {
	enabled bool
}

// NewStyler creates a Styler.
func NewStyler(enabled bool) *Styler {
	return &Styler{enabled: enabled}
}

// Apply renders text in style.
func (s *Styler) Apply(text string, style Style) string {
	if !s.enabled {
		return text
	}

	var codes []string
	if style.FgColor != ColorDefault {
		codes = append(codes, fmt.Sprintf("3%d", style.FgColor-1))
	}
	if style.BgColor != ColorDefault {
		codes = append(codes, fmt.Sprintf("4%d", style.BgColor-1))
	}
	if style.Bold {
		codes = append(codes, "1")
	}
	if style.Italic {
		codes = append(codes, "3")
	}
	if style.Underline {
		codes = append(codes, "4")
	}
	if len(codes) == 0 {
		return text
	}

	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", strings.Join(codes, ";"), text)
}

func (s *Styler) Red(text string) string    { return s.Apply(text, Style{FgColor: ColorRed}) }
func (s *Styler) Green(text string) string  { return s.Apply(text, Style{FgColor: ColorGreen}) }
func (s *Styler) Yellow(text string) string { return s.Apply(text, Style{FgColor: ColorYellow}) }
func (s *Styler) Blue(text string) string   { return s.Apply(text, Style{FgColor: ColorBlue}) }
func (s *Styler) Bold(text string) string   { return s.Apply(text, Style{Bold: true}) }

// Dim renders text at reduced intensity. It bypasses Apply because no
// Style attribute composes with it.
func (s *Styler) Dim(text string) string {
	if !s.enabled {
		return text
	}
	return fmt.Sprintf("\x1b[2m%s\x1b[0m", text)
}
