package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

const (
	titleColor = "#7D56F4"
	okColor    = "#04B575"
	errColor   = "#FF0000"
	warnColor  = "#FFA500"
	helpColor  = "#626262"
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// NewPalette builds a palette from five foreground colors, rendered for r.
func NewPalette(r *lipgloss.Renderer, t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(r, t),
		ok:    NewBold(r, s),
		err:   NewBold(r, e),
		warn:  NewStyle(r, w),
		help:  NewEm(r, h),
	}
}

// ForWriter returns the default palette for output written to w.
//
// Colors are dropped when w is not a terminal.
func ForWriter(w io.Writer) *Palette {
	return NewPalette(lipgloss.NewRenderer(w), titleColor, okColor, errColor, warnColor, helpColor)
}

func NewStyle(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return r.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return NewStyle(r, fg).Bold(true)
}

func NewEm(r *lipgloss.Renderer, fg string) lipgloss.Style {
	return NewStyle(r, fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }

func (p *Palette) OK(s string) string { return p.ok.Render(s) }

func (p *Palette) Err(s string) string { return p.err.Render(s) }

func (p *Palette) Warn(s string) string { return p.warn.Render(s) }

func (p *Palette) Help(s string) string { return p.help.Render(s) }
