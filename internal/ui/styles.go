// Package ui renders session results for the terminal: markdown output,
// lipgloss styles and the completion metrics footer.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all terminal output
var (
	Green = lipgloss.Color("10") // success
	Red   = lipgloss.Color("9")  // error
	Grey  = lipgloss.Color("8")  // muted text
	Blue  = lipgloss.Color("4")  // accents
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Accent  lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Success: r.NewStyle().Foreground(Green),
		Error:   r.NewStyle().Foreground(Red),
		Muted:   r.NewStyle().Foreground(Grey),
		Bold:    r.NewStyle().Bold(true),
		Accent:  r.NewStyle().Foreground(Blue),
	}
}
