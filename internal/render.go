package internal

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultWrapWidth is the word-wrap width for rendered replies
const DefaultWrapWidth = 80

// MarkdownRenderer renders assistant replies for the terminal. A renderer
// created with plain set, writing to something other than a terminal, or
// whose glamour setup failed, passes text through unchanged.
type MarkdownRenderer struct {
	term *glamour.TermRenderer
}

type rendererConfig struct {
	style string
}

// RendererOption customizes NewMarkdownRenderer
type RendererOption func(*rendererConfig)

// WithRenderStyle forces a named glamour style ("dark", "light", ...).
// A forced style renders regardless of whether the output is a terminal.
func WithRenderStyle(style string) RendererOption {
	return func(c *rendererConfig) {
		c.style = style
	}
}

// NewMarkdownRenderer creates a renderer for output written to w, wrapping
// at width columns
func NewMarkdownRenderer(w io.Writer, width int, plain bool, opts ...RendererOption) *MarkdownRenderer {
	var cfg rendererConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if plain {
		return &MarkdownRenderer{}
	}
	if cfg.style == "" && !isTerminal(w) {
		LogDebug("output is not a terminal, rendering markdown as plain text")
		return &MarkdownRenderer{}
	}
	if width <= 0 {
		width = DefaultWrapWidth
	}

	style := glamour.WithAutoStyle()
	if cfg.style != "" {
		style = glamour.WithStandardStyle(cfg.style)
	}
	term, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		LogWarn("markdown rendering disabled: %v", err)
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{term: term}
}

// Plain reports whether text is passed through unrendered
func (r *MarkdownRenderer) Plain() bool {
	return r == nil || r.term == nil
}

// Render returns content formatted for display
func (r *MarkdownRenderer) Render(content string) string {
	if r.Plain() {
		return content
	}
	out, err := r.term.Render(content)
	if err != nil {
		LogDebug("render failed, falling back to plain text: %v", err)
		return content
	}
	return strings.TrimRight(out, "\n") + "\n"
}
