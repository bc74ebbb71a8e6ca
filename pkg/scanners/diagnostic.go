package scanners

// Diagnostic codes.
const (
	DiagUnknownSeverity   = "unknown_severity"
	DiagConfidenceClamped = "confidence_clamped"
	DiagMissingConfidence = "missing_confidence"
	DiagInvalidLine       = "invalid_line"
	DiagMissingType       = "missing_type"
)

// Diagnostic is a data-quality note attached to a scan result. It never
// fails a scan.
type Diagnostic struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	FindingID string `json:"findingId,omitempty"`
}
