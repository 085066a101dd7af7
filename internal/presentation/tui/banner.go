package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the coachflow banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"                     _      __ _", "#34d399"},
		{"   ___ ___   __ _ ___| |__  / _| | _____      __", "#2dd4bf"},
		{"  / __/ _ \\ / _` / __| '_ \\| |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
		{" | (_| (_) | (_| \\__ \\ | | |  _| | (_) \\ V  V /", "#38bdf8"},
		{"  \\___\\___/ \\__,_|___/_| |_|_| |_|\\___/ \\_/\\_/", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
