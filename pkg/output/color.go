package output

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode represents the color output strategy.
type ColorMode string

const (
	ColorModeAuto   ColorMode = "auto"
	ColorModeAlways ColorMode = "always"
	ColorModeNever  ColorMode = "never"
)

var colorsEnabled atomic.Bool

func init() {
	colorsEnabled.Store(true)
}

// InitColors resolves the color state from the --color flag, NO_COLOR, TERM
// and whether f is a terminal.
//
// Precedence:
//  1. always -> on, even with NO_COLOR
//  2. never  -> off
//  3. NO_COLOR or TERM=dumb -> off
//  4. auto   -> on when f is a terminal
func InitColors(mode ColorMode, f *os.File) {
	switch mode {
	case ColorModeAlways:
		setColors(true)
	case ColorModeNever:
		setColors(false)
	default:
		switch {
		case os.Getenv("NO_COLOR") != "":
			setColors(false)
		case strings.Contains(strings.ToLower(os.Getenv("TERM")), "dumb"):
			setColors(false)
		default:
			setColors(IsTerminal(f))
		}
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// ColorsEnabled returns whether colors are currently enabled.
func ColorsEnabled() bool {
	return colorsEnabled.Load()
}

func setColors(on bool) {
	colorsEnabled.Store(on)
	if on {
		if lipgloss.ColorProfile() == termenv.Ascii {
			lipgloss.SetColorProfile(termenv.ANSI256)
		}
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}
