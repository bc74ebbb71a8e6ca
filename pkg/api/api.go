// Package api defines the CodeShield HTTP API types and response helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/signatures"
)

// MaxRequestBytes bounds request bodies.
const MaxRequestBytes = 4 << 20

// Error codes.
const (
	CodeInvalidRequest = "invalid_request"
	CodeTooLarge       = "request_too_large"
	CodeNotReady       = "not_ready"
	CodeInternal       = "internal_error"
)

// ScanRequest is the body of POST /v1/scan.
type ScanRequest = engine.Request

// DetectRequest is the body of POST /v1/detect.
type DetectRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// FindingsResponse is returned by /v1/detect and /v1/merge.
type FindingsResponse struct {
	Vulnerabilities []scanners.Finding `json:"vulnerabilities"`
}

// MergeRequest is the body of POST /v1/merge.
type MergeRequest struct {
	Pattern  []scanners.Finding `json:"pattern"`
	Semantic []scanners.Finding `json:"semantic"`
}

// SignatureInfo describes one catalog entry.
type SignatureInfo struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Severity    signatures.Severity `json:"severity"`
	Languages   []string            `json:"languages"`
	CWE         string              `json:"cwe,omitempty"`
	Description string              `json:"description"`
}

// SignaturesResponse is returned by GET /v1/signatures.
type SignaturesResponse struct {
	Count      int             `json:"count"`
	Language   string          `json:"language,omitempty"`
	Languages  []string        `json:"languages"`
	Signatures []SignatureInfo `json:"signatures"`
}

// NewSignaturesResponse lists sigs.
func NewSignaturesResponse(language string, all []string, sigs []signatures.Signature) SignaturesResponse {
	infos := make([]SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		infos = append(infos, SignatureInfo{
			ID:          s.ID,
			Name:        s.Name,
			Severity:    s.Severity,
			Languages:   s.Languages,
			CWE:         s.CWE,
			Description: s.Description,
		})
	}
	return SignaturesResponse{
		Count:      len(infos),
		Language:   language,
		Languages:  all,
		Signatures: infos,
	}
}

// HealthResponse is returned by /health and /ready.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Signatures int    `json:"signatures,omitempty"`
	Reviewer   string `json:"reviewer,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// DecodeJSON reads a JSON body into v, rejecting bodies over MaxRequestBytes
// and trailing data. On failure it writes the error response and returns
// false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", MaxRequestBytes))
			return false
		}
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON: "+err.Error())
		return false
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON: trailing data after object")
		return false
	}
	return true
}
