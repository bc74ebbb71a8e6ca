package output

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// GetLexer returns the chroma lexer for a filename, or plaintext.
func GetLexer(filename string) chroma.Lexer {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

func chromaStyle() *chroma.Style {
	if !ColorsEnabled() {
		return nil
	}
	if lipgloss.HasDarkBackground() {
		return styles.Get("monokai")
	}
	return styles.Get("github")
}

func terminalFormatter() chroma.Formatter {
	switch lipgloss.ColorProfile() {
	case termenv.TrueColor:
		return formatters.Get("terminal16m")
	case termenv.ANSI256:
		return formatters.Get("terminal256")
	default:
		return formatters.Get("terminal")
	}
}

// HighlightLine highlights one line of code for the terminal. The line is
// returned unchanged when colors are off or highlighting fails.
func HighlightLine(line, filename string) string {
	style := chromaStyle()
	if style == nil {
		return line
	}

	iterator, err := GetLexer(filename).Tokenise(nil, line)
	if err != nil {
		return line
	}

	var buf bytes.Buffer
	if err := terminalFormatter().Format(&buf, style, iterator); err != nil {
		return line
	}
	return strings.TrimRight(buf.String(), "\n")
}
