package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` _             _       _             `, "#38bdf8"},
	{`| |_ _ __ __ _(_)_   _(_) _____      __`, "#22d3ee"},
	{`| __| '__/ _' | \ \ / / |/ _ \ \ /\ / /`, "#2dd4bf"},
	{`| |_| | | (_| | |\ V /| |  __/\ V  V / `, "#34d399"},
	{` \__|_|  \__,_| | \_/ |_|\___| \_/\_/  `, "#4ade80"},
	{`             |__/                      `, "#a3e635"},
}

// PrintBanner writes the trajview banner and version to w using the color
// profile of the terminal behind w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
