package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You are an application security reviewer. Respond only with valid JSON."

func buildPrompt(filename, code string) string {
	if filename == "" {
		filename = "(unnamed)"
	}

	return fmt.Sprintf(`Review this source file for security vulnerabilities.

File: %s

Lines are prefixed with their 1-based line number.

%s

Look for injection (SQL, command, code), cross-site scripting, hardcoded
credentials, weak cryptography, insecure deserialization, path traversal,
broken authentication and insecure configuration. Report only real issues.

Respond with this exact JSON format:
{"vulnerabilities": [{"type": "SQL Injection", "severity": "critical|high|medium|low", "line": 1, "description": "what is wrong", "remediation": "how to fix it", "confidence": 0-100}], "overallRisk": "critical|high|medium|low|none", "summary": "one paragraph", "recommendations": ["..."]}`,
		filename, numberLines(code))
}

// numberLines prefixes every line with its 1-based number.
func numberLines(code string) string {
	lines := strings.Split(code, "\n")
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%*d | %s\n", width, i+1, strings.TrimSuffix(line, "\r"))
	}
	return b.String()
}

// truncateLines cuts code to at most maxBytes, on a line boundary.
func truncateLines(code string, maxBytes int) string {
	if maxBytes <= 0 || len(code) <= maxBytes {
		return code
	}
	cut := strings.LastIndex(code[:maxBytes], "\n")
	if cut < 0 {
		cut = maxBytes
	}
	return code[:cut]
}

// parseReview extracts a Review from a model answer. Models often wrap the
// JSON object in prose or a markdown fence, so the outermost object is used.
func parseReview(response string) (*Review, error) {
	response = strings.TrimSpace(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}

	var r Review
	if err := json.Unmarshal([]byte(response[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if r.Vulnerabilities == nil {
		r.Vulnerabilities = []Vulnerability{}
	}
	return &r, nil
}
