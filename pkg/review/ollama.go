package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaProvider implements Reviewer for Ollama.
type OllamaProvider struct {
	base
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	config.Type = ProviderOllama
	return &OllamaProvider{base: newBase(config)}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return string(ProviderOllama)
}

// IsAvailable checks if Ollama is running.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return ping(ctx, p.config.Endpoint+"/api/tags", "")
}

// ReviewCode asks the model to review code and parses its JSON answer.
func (p *OllamaProvider) ReviewCode(ctx context.Context, filename, code string) (*Review, error) {
	response, err := p.Generate(ctx, buildPrompt(filename, p.prepare(code)))
	if err != nil {
		return nil, err
	}
	return parseReview(response)
}

// Generate sends a prompt to Ollama and returns the response.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":  p.config.Model,
		"system": systemPrompt,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": 0.1,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", ErrMalformedResponse, err)
	}

	return ollamaResp.Response, nil
}

// ping reports whether a GET on url answers 200.
func ping(ctx context.Context, url, apiKey string) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func init() {
	RegisterProvider(ProviderOllama, func(config Config) (Reviewer, error) {
		return NewOllamaProvider(config)
	})
}
