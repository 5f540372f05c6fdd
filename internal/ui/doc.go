// Package ui renders human-readable CLI output with lipgloss styles.
//
// A [Palette] is created per output stream with [ForWriter], so piping pngx
// into a file or another program yields plain text. [Palette.Progress] turns
// the progress updates emitted by the tasks package into one line each.
package ui
