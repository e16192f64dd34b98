// Package ui renders command output for the terminal with lipgloss styles.
//
// [Palette] holds the named styles. The render helpers format task outcomes,
// progress updates and the settings table the CLI prints.
package ui
