// Package ui renders run and export summaries for the terminal with lipgloss styles.
//
// Colors degrade to plain text when output is not a terminal, so the same renderers serve
// interactive use and redirected output.
package ui
