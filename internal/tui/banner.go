package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Glyph.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Indigo-to-rose gradient, one color per line.
	s1 := termenv.String("        _             _     ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String("   __ _| |_   _ _ __ | |__  ").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String("  / _` | | | | | '_ \\| '_ \\ ").Foreground(p.Color("#c084fc"))
	s4 := termenv.String(" | (_| | | |_| | |_) | | | |").Foreground(p.Color("#e879f9"))
	s5 := termenv.String("  \\__, |_|\\__, | .__/|_| |_|").Foreground(p.Color("#f472b6"))
	s6 := termenv.String("  |___/   |___/|_|          ").Foreground(p.Color("#fb7185"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(s6)
	fmt.Printf("  v%s\n\n", version)
}
