package tui

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns Markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a Renderer using glamour with a style matching the
// terminal background. Width 0 keeps glamour's default.
func NewRenderer(width int) (Renderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// Plain returns markdown unchanged.
func Plain(markdown string) (string, error) {
	return markdown, nil
}
