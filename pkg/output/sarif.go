package output

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/signatures"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

// SARIFFormatter formats reports as SARIF 2.1.0.
type SARIFFormatter struct{}

type sarifReport struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Version        string      `json:"version"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ShortDescription sarifMessage    `json:"shortDescription"`
	Help             *sarifMessage   `json:"help,omitempty"`
	Properties       *sarifRuleProps `json:"properties,omitempty"`
}

type sarifRuleProps struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          sarifResultProps  `json:"properties"`
}

type sarifResultProps struct {
	Confidence      float64 `json:"confidence"`
	DetectionMethod string  `json:"detectionMethod"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int           `json:"startLine"`
	StartColumn int           `json:"startColumn,omitempty"`
	Snippet     *sarifMessage `json:"snippet,omitempty"`
}

// Format implements Formatter.
func (f *SARIFFormatter) Format(report *Report, w io.Writer) error {
	rules := make(map[string]sarifRule)
	results := make([]sarifResult, 0)

	for _, res := range report.Results {
		for _, finding := range res.Vulnerabilities {
			id := ruleID(finding)
			if _, ok := rules[id]; !ok {
				rules[id] = newSarifRule(id, finding)
			}
			results = append(results, newSarifResult(id, res.Filename, finding))
		}
	}

	ruleList := make([]sarifRule, 0, len(rules))
	for _, r := range rules {
		ruleList = append(ruleList, r)
	}
	sort.Slice(ruleList, func(i, j int) bool { return ruleList[i].ID < ruleList[j].ID })

	out := sarifReport{
		Version: "2.1.0",
		Schema:  sarifSchema,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "CodeShield",
						Version: report.Version,
						Rules:   ruleList,
					},
				},
				Results: results,
			},
		},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// ruleID is the signature id for pattern and fused findings, or a slug of
// the type for reviewer-only findings.
func ruleID(f scanners.Finding) string {
	if f.SignatureID != "" {
		return f.SignatureID
	}
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(f.Type))
	return "semantic/" + strings.Trim(slug, "-")
}

func newSarifRule(id string, f scanners.Finding) sarifRule {
	rule := sarifRule{
		ID:               id,
		Name:             f.Type,
		ShortDescription: sarifMessage{Text: f.Type},
	}
	if f.Suggestion != "" {
		rule.Help = &sarifMessage{Text: f.Suggestion}
	}
	tags := []string{"security"}
	if f.CWE != "" {
		tags = append(tags, f.CWE)
	}
	rule.Properties = &sarifRuleProps{Tags: tags}
	return rule
}

func newSarifResult(ruleID, filename string, f scanners.Finding) sarifResult {
	result := sarifResult{
		RuleID:              ruleID,
		Level:               severityToSarifLevel(f.Severity),
		Message:             sarifMessage{Text: f.Type + ": " + f.Message},
		PartialFingerprints: map[string]string{"codeshield/v1": f.ID},
		Properties: sarifResultProps{
			Confidence:      f.Confidence,
			DetectionMethod: string(f.DetectionMethod),
		},
	}

	uri := filename
	if uri == "" {
		uri = "stdin"
	}
	region := &sarifRegion{StartLine: f.Location.Line}
	if f.Location.Column != nil {
		region.StartColumn = *f.Location.Column + 1 // SARIF columns are 1-based
	}
	if f.Snippet != "" {
		region.Snippet = &sarifMessage{Text: f.Snippet}
	}
	result.Locations = []sarifLocation{{
		PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: uri},
			Region:           region,
		},
	}}
	return result
}

func severityToSarifLevel(severity signatures.Severity) string {
	switch severity {
	case signatures.SeverityCritical, signatures.SeverityHigh:
		return "error"
	case signatures.SeverityMedium:
		return "warning"
	case signatures.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
