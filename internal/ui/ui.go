package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

var (
	Brand  = color.New(color.FgHiGreen, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

// Output is where Table and Swatch write. Tests swap it out.
var Output io.Writer = os.Stdout

// swatches maps palette colour tags onto the closest terminal colour.
var swatches = map[string]*color.Color{
	"blue":    color.New(color.FgBlue),
	"purple":  color.New(color.FgMagenta),
	"green":   color.New(color.FgGreen),
	"red":     color.New(color.FgRed),
	"yellow":  color.New(color.FgYellow),
	"orange":  color.New(color.FgHiYellow),
	"teal":    color.New(color.FgCyan),
	"indigo":  color.New(color.FgHiBlue),
	"pink":    color.New(color.FgHiMagenta),
	"cyan":    color.New(color.FgHiCyan),
	"gray":    color.New(color.FgHiBlack),
	"emerald": color.New(color.FgHiGreen),
	"amber":   color.New(color.FgHiYellow),
}

// Swatch returns a coloured block followed by the colour name.
func Swatch(name string) string {
	c, ok := swatches[name]
	if !ok {
		c = swatches["gray"]
	}
	return c.Sprint("■") + " " + name
}

// Table prints a simple aligned table.
func Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visibleWidth(cell) > widths[i] {
				widths[i] = visibleWidth(cell)
			}
		}
	}

	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += pad(h, widths[i])
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Fprintln(Output, headerLine)
	Subtle.Fprintln(Output, sepLine)

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += pad(cell, widths[i])
			}
		}
		fmt.Fprintln(Output, strings.TrimRight(line, " "))
	}
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", width-visibleWidth(s)) + "  "
}

// visibleWidth counts runes outside ANSI escape sequences.
func visibleWidth(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}

// StatusIcon returns a status icon string.
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}
