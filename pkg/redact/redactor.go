// Package redact masks secrets and personal data in source code before it
// is sent to an external reviewer. Redaction never changes the number of
// lines, so line numbers reported against the redacted text stay valid.
package redact

import (
	"regexp"
	"strings"
)

// Categories.
const (
	CategorySecrets = "secrets"
	CategoryPII     = "pii"
)

// valueGroup names the submatch that is replaced when a pattern defines it.
// Patterns without it replace the whole match.
const valueGroup = "value"

// Redactor performs content redaction. Patterns run in registration order.
type Redactor struct {
	patterns []*Pattern
}

// Pattern represents a redaction pattern.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Category    string
	group       int
}

// RedactionResult represents the result of a redaction operation.
type RedactionResult struct {
	Original     string
	Redacted     string
	Replacements []Replacement
	HasChanges   bool
}

// Replacement represents a single redaction replacement.
type Replacement struct {
	Original    string
	Replacement string
	Category    string
	PatternName string
	Start       int
	End         int
}

// NewRedactor creates a new Redactor with default patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.registerDefaultPatterns()
	return r
}

func (r *Redactor) registerDefaultPatterns() {
	// Secrets. Key/value style patterns keep the key so a reviewer still sees
	// that a credential is hardcoded.
	r.mustAdd("private_key", `-----BEGIN (?:RSA |EC |DSA |OPENSSH |ENCRYPTED )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |DSA |OPENSSH |ENCRYPTED )?PRIVATE KEY-----`, "[PRIVATE_KEY_REDACTED]", CategorySecrets)
	r.mustAdd("anthropic_api_key", `sk-ant-[a-zA-Z0-9\-]{20,}`, "[ANTHROPIC_KEY_REDACTED]", CategorySecrets)
	r.mustAdd("openai_api_key", `sk-(?:proj-)?[a-zA-Z0-9_]{20,}`, "[OPENAI_KEY_REDACTED]", CategorySecrets)
	r.mustAdd("aws_access_key", `AKIA[0-9A-Z]{16}`, "[AWS_KEY_REDACTED]", CategorySecrets)
	r.mustAdd("aws_secret_key", `(?i)aws.{0,20}['"](?P<value>[0-9a-zA-Z/+]{40})['"]`, "[AWS_SECRET_REDACTED]", CategorySecrets)
	r.mustAdd("github_token", `gh[pousr]_[A-Za-z0-9_]{36,}`, "[GITHUB_TOKEN_REDACTED]", CategorySecrets)
	r.mustAdd("github_pat", `github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59}`, "[GITHUB_PAT_REDACTED]", CategorySecrets)
	r.mustAdd("slack_token", `xox[baprs]-[0-9a-zA-Z-]{10,}`, "[SLACK_TOKEN_REDACTED]", CategorySecrets)
	r.mustAdd("stripe_key", `(?:sk|rk)_live_[a-zA-Z0-9]{24,}`, "[STRIPE_KEY_REDACTED]", CategorySecrets)
	r.mustAdd("jwt_token", `eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`, "[JWT_REDACTED]", CategorySecrets)
	r.mustAdd("bearer_token", `(?i)bearer\s+(?P<value>[a-zA-Z0-9\-_\.]{8,})`, "[BEARER_TOKEN_REDACTED]", CategorySecrets)
	r.mustAdd("connection_password", `(?i)[a-z][a-z0-9+.-]*://[^:/\s"']+:(?P<value>[^@\s"']+)@`, "[PASSWORD_REDACTED]", CategorySecrets)
	r.mustAdd("generic_api_key", `(?i)(?:api[_-]?key|apikey|api[_-]?secret|access[_-]?token)['"]?\s*[:=]+\s*['"](?P<value>[a-zA-Z0-9\-_]{16,})['"]`, "[API_KEY_REDACTED]", CategorySecrets)
	r.mustAdd("password_field", `(?i)(?:password|passwd|pwd|secret)['"]?\s*[:=]+\s*['"](?P<value>[^'"\s]{3,})['"]`, "[PASSWORD_REDACTED]", CategorySecrets)

	// PII
	r.mustAdd("ssn", `\b\d{3}-\d{2}-\d{4}\b`, "[SSN_REDACTED]", CategoryPII)
	r.mustAdd("email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, "[EMAIL_REDACTED]", CategoryPII)
	r.mustAdd("credit_card", `\b(?:\d{4}[-\s]?){3}\d{4}\b`, "[CREDIT_CARD_REDACTED]", CategoryPII)
}

func (r *Redactor) mustAdd(name, pattern, replacement, category string) {
	if err := r.AddPattern(name, pattern, replacement, category); err != nil {
		panic("redact: " + name + ": " + err.Error())
	}
}

// AddPattern adds a redaction pattern, replacing any pattern with the same
// name. If the expression has a submatch named "value", only that submatch is
// replaced.
func (r *Redactor) AddPattern(name, pattern, replacement, category string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	p := &Pattern{
		Name:        name,
		Regex:       re,
		Replacement: replacement,
		Category:    category,
		group:       re.SubexpIndex(valueGroup),
	}

	for i, existing := range r.patterns {
		if existing.Name == name {
			r.patterns[i] = p
			return nil
		}
	}
	r.patterns = append(r.patterns, p)
	return nil
}

// RemovePattern removes a redaction pattern.
func (r *Redactor) RemovePattern(name string) {
	for i, p := range r.patterns {
		if p.Name == name {
			r.patterns = append(r.patterns[:i], r.patterns[i+1:]...)
			return
		}
	}
}

// Patterns returns the registered patterns in order.
func (r *Redactor) Patterns() []*Pattern {
	return append([]*Pattern(nil), r.patterns...)
}

// Redact performs redaction on the given content using every pattern.
func (r *Redactor) Redact(content string) *RedactionResult {
	return r.redact(content, "")
}

// RedactCategory performs redaction only for patterns in the specified category.
func (r *Redactor) RedactCategory(content string, category string) *RedactionResult {
	return r.redact(content, category)
}

// RedactSecrets redacts only secrets from the content.
func (r *Redactor) RedactSecrets(content string) *RedactionResult {
	return r.RedactCategory(content, CategorySecrets)
}

// RedactPII redacts only PII from the content.
func (r *Redactor) RedactPII(content string) *RedactionResult {
	return r.RedactCategory(content, CategoryPII)
}

func (r *Redactor) redact(content, category string) *RedactionResult {
	result := &RedactionResult{
		Original:     content,
		Redacted:     content,
		Replacements: []Replacement{},
	}

	for _, pattern := range r.patterns {
		if category != "" && pattern.Category != category {
			continue
		}

		matches := pattern.Regex.FindAllStringSubmatchIndex(result.Redacted, -1)

		// Reverse order keeps earlier indices valid.
		for i := len(matches) - 1; i >= 0; i-- {
			start, end := matches[i][0], matches[i][1]
			if g := pattern.group; g > 0 && matches[i][2*g] >= 0 {
				start, end = matches[i][2*g], matches[i][2*g+1]
			}

			original := result.Redacted[start:end]
			replacement := pattern.Replacement + strings.Repeat("\n", strings.Count(original, "\n"))

			result.Replacements = append(result.Replacements, Replacement{
				Original:    original,
				Replacement: replacement,
				Category:    pattern.Category,
				PatternName: pattern.Name,
				Start:       start,
				End:         end,
			})

			result.Redacted = result.Redacted[:start] + replacement + result.Redacted[end:]
			result.HasChanges = true
		}
	}

	return result
}

// ContainsSecrets checks if content contains any secrets.
func (r *Redactor) ContainsSecrets(content string) bool {
	return r.contains(content, CategorySecrets)
}

// ContainsPII checks if content contains any PII.
func (r *Redactor) ContainsPII(content string) bool {
	return r.contains(content, CategoryPII)
}

func (r *Redactor) contains(content, category string) bool {
	for _, pattern := range r.patterns {
		if pattern.Category == category && pattern.Regex.MatchString(content) {
			return true
		}
	}
	return false
}
