package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/brad07/codeshield/pkg/signatures"
)

var (
	colorCriticalBg = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#DC2626"}
	colorHighBg     = lipgloss.AdaptiveColor{Light: "#EA580C", Dark: "#EA580C"}
	colorMediumBg   = lipgloss.AdaptiveColor{Light: "#CA8A04", Dark: "#CA8A04"}
	colorLowBg      = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#2563EB"}

	colorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#22C55E"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	colorDanger  = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#6B7280"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
)

// Styles holds the lipgloss styles used by the human formatter.
type Styles struct {
	CriticalBadge lipgloss.Style
	HighBadge     lipgloss.Style
	MediumBadge   lipgloss.Style
	LowBadge      lipgloss.Style

	FileHeader lipgloss.Style
	Title      lipgloss.Style
	Location   lipgloss.Style
	Muted      lipgloss.Style
	Suggestion lipgloss.Style
	Code       lipgloss.Style

	ScoreGood lipgloss.Style
	ScoreFair lipgloss.Style
	ScorePoor lipgloss.Style

	Warning lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() *Styles {
	badge := func(bg lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(bg).
			Padding(0, 1)
	}

	return &Styles{
		CriticalBadge: badge(colorCriticalBg),
		HighBadge:     badge(colorHighBg),
		MediumBadge:   badge(colorMediumBg),
		LowBadge:      badge(colorLowBg),

		FileHeader: lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Title:      lipgloss.NewStyle().Bold(true),
		Location:   lipgloss.NewStyle().Foreground(colorAccent),
		Muted:      lipgloss.NewStyle().Foreground(colorMuted),
		Suggestion: lipgloss.NewStyle().Foreground(colorSuccess),
		Code:       lipgloss.NewStyle().PaddingLeft(4),

		ScoreGood: lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
		ScoreFair: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		ScorePoor: lipgloss.NewStyle().Bold(true).Foreground(colorDanger),

		Warning: lipgloss.NewStyle().Foreground(colorWarning),
	}
}

// Badge returns the badge style for a severity.
func (s *Styles) Badge(sev signatures.Severity) lipgloss.Style {
	switch sev {
	case signatures.SeverityCritical:
		return s.CriticalBadge
	case signatures.SeverityHigh:
		return s.HighBadge
	case signatures.SeverityMedium:
		return s.MediumBadge
	default:
		return s.LowBadge
	}
}

// Score returns the style for a score given as a fraction of the maximum.
func (s *Styles) Score(score, max float64) lipgloss.Style {
	if max <= 0 {
		return s.ScorePoor
	}
	switch ratio := score / max; {
	case ratio >= 0.9:
		return s.ScoreGood
	case ratio >= 0.7:
		return s.ScoreFair
	default:
		return s.ScorePoor
	}
}
