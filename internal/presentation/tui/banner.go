package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the iaqflow ASCII art banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _                __ _               ", "#34d399"},
		{"(_) __ _  __ _   / _| | _____      __", "#2dd4bf"},
		{"| |/ _` |/ _` | | |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
		{"| | (_| | (_| | |  _| | (_) \\ V  V / ", "#38bdf8"},
		{"|_|\\__,_|\\__, | |_| |_|\\___/ \\_/\\_/  ", "#60a5fa"},
		{"            |_|                      ", "#818cf8"},
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
