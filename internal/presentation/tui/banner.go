package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the multipage ASCII banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{"                 _ _   _                        ", "#818cf8"},
		{"  _ __ ___  _   _| | |_(_)_ __   __ _  __ _  ___ ", "#a78bfa"},
		{" | '_ ` _ \\| | | | | __| | '_ \\ / _` |/ _` |/ _ \\", "#c084fc"},
		{" | | | | | | |_| | | |_| | |_) | (_| | (_| |  __/", "#e879f9"},
		{" |_| |_| |_|\\__,_|_|\\__|_| .__/ \\__,_|\\__, |\\___|", "#f472b6"},
		{"                         |_|          |___/      ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
