package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the bridge banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _          _     _", "#818cf8"},
		{"| |__  _ __(_) __| | __ _  ___", "#a78bfa"},
		{"| '_ \\| '__| |/ _` |/ _` |/ _ \\", "#c084fc"},
		{"| |_) | |  | | (_| | (_| |  __/", "#e879f9"},
		{"|_.__/|_|  |_|\\__,_|\\__, |\\___|", "#f472b6"},
		{"                    |___/", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
