package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

func init() {
	// plain output when piped
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		for _, s := range []*lipgloss.Style{&titleStyle, &labelStyle, &valueStyle, &successStyle, &errorStyle} {
			*s = lipgloss.NewStyle()
		}
	}
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", titleStyle.Render(title), strings.Repeat("=", 60))
}

func printStat(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(fmt.Sprint(value)))
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✓ "+msg))
}

func isGeoJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return true
	}
	return false
}
