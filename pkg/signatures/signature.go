// Package signatures holds the vulnerability signature catalog used by the
// pattern scanner. Signatures are plain data records; behavior lives in the
// scanner that applies them.
package signatures

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Wildcard in a signature's language list makes it apply to every language.
const Wildcard = "*"

// Severity is the impact bucket of a signature or finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities returns all severities from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Rank orders severities: low < medium < high < critical. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether s is one of the four known severities.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity normalizes severity strings from signature packs and external
// reviewers. The boolean is false when the value could not be mapped.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit", "blocker":
		return SeverityCritical, true
	case "high", "error", "severe":
		return SeverityHigh, true
	case "medium", "moderate", "warning", "warn", "med":
		return SeverityMedium, true
	case "low", "info", "informational", "minor", "note":
		return SeverityLow, true
	default:
		return SeverityLow, false
	}
}

var (
	// ErrInvalidSignature is wrapped by every signature validation error.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrDuplicateID is returned when two signatures share an id.
	ErrDuplicateID = errors.New("duplicate signature id")
)

// Signature is a named, severity-tagged lexical pattern for one vulnerability
// category. Patterns use RE2 syntax and are evaluated against a single line.
type Signature struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Pattern     string   `yaml:"pattern" json:"pattern"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Languages   []string `yaml:"languages" json:"languages"`
	CWE         string   `yaml:"cwe,omitempty" json:"cwe,omitempty"`
	Description string   `yaml:"description" json:"description"`
	Remediation string   `yaml:"remediation" json:"remediation"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. It is nil until the signature has been
// accepted by NewRegistry or Parse.
func (s *Signature) Regexp() *regexp.Regexp {
	return s.re
}

// AppliesTo reports whether the signature applies to the normalized language tag.
func (s *Signature) AppliesTo(language string) bool {
	for _, l := range s.Languages {
		if l == Wildcard || l == language {
			return true
		}
	}
	return false
}

// compile validates the signature and compiles its pattern in place.
func (s *Signature) compile() error {
	var errs []error

	if strings.TrimSpace(s.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !s.Severity.IsValid() {
		errs = append(errs, fmt.Errorf("unknown severity %q", s.Severity))
	}
	if len(s.Languages) == 0 {
		errs = append(errs, errors.New("languages must be non-empty or contain \"*\""))
	}
	for i, l := range s.Languages {
		s.Languages[i] = NormalizeLanguage(l)
		if s.Languages[i] == "" {
			errs = append(errs, fmt.Errorf("language %d is blank", i))
		}
	}

	if s.Pattern == "" {
		errs = append(errs, errors.New("pattern is required"))
	} else {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("pattern does not compile: %w", err))
		} else if re.MatchString("") {
			errs = append(errs, errors.New("pattern matches the empty string"))
		} else {
			s.re = re
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidSignature, s.ID, errors.Join(errs...))
	}
	return nil
}
