package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor     = lipgloss.Color("8")
	accentColor  = lipgloss.Color("12")
	successColor = lipgloss.Color("10")
	warnColor    = lipgloss.Color("11")
	dangerColor  = lipgloss.Color("9")

	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(dimColor)
	accentStyle  = lipgloss.NewStyle().Foreground(accentColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)
	errorStyle   = lipgloss.NewStyle().Foreground(dangerColor)
	plainStyle   = lipgloss.NewStyle()
)

// padRight pads s with spaces to width. Padding happens before any
// styling so ANSI escapes never skew column alignment.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// writeTable prints aligned columns with a dimmed header. style picks
// the style for a body cell; nil renders every cell plain.
func writeTable(w io.Writer, header []string, rows [][]string, style func(row, col int, cell string) lipgloss.Style) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	headerCells := make([]string, len(header))
	for i, h := range header {
		headerCells[i] = dimStyle.Render(padRight(h, widths[i]))
	}
	fmt.Fprintln(w, strings.Join(headerCells, "  "))

	for r, row := range rows {
		cells := make([]string, 0, len(row))
		for c, cell := range row {
			padded := cell
			if c < len(row)-1 {
				padded = padRight(cell, widths[c])
			}
			if style != nil {
				padded = style(r, c, cell).Render(padded)
			}
			cells = append(cells, padded)
		}
		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
}

// okf prints a success line.
func okf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}
