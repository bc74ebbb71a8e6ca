package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// OpenAIProvider implements Reviewer for OpenAI-compatible chat completion
// APIs. LM Studio exposes the same API locally.
type OpenAIProvider struct {
	base
	name string
}

// NewOpenAIProvider creates a provider for config.Type, which must be openai
// or lmstudio.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	switch config.Type {
	case ProviderOpenAI, ProviderLMStudio:
	case "":
		config.Type = ProviderOpenAI
	default:
		return nil, fmt.Errorf("%w: %s is not OpenAI-compatible", ErrUnknownProvider, config.Type)
	}
	if config.Type == ProviderOpenAI && config.APIKey == "" {
		return nil, errors.New("openai provider requires an API key")
	}

	return &OpenAIProvider{base: newBase(config), name: string(config.Type)}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// IsAvailable checks if the models endpoint answers.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	return ping(ctx, p.config.Endpoint+"/v1/models", p.config.APIKey)
}

// ReviewCode asks the model to review code and parses its JSON answer.
func (p *OpenAIProvider) ReviewCode(ctx context.Context, filename, code string) (*Review, error) {
	response, err := p.Generate(ctx, buildPrompt(filename, p.prepare(code)))
	if err != nil {
		return nil, err
	}
	return parseReview(response)
}

// Generate sends a prompt using the chat completions API.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": p.config.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
		"max_tokens":  2000,
	}
	if p.config.Type == ProviderOpenAI {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, string(bodyBytes))
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", ErrMalformedResponse, err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices from %s", ErrMalformedResponse, p.name)
	}

	return chatResp.Choices[0].Message.Content, nil
}

func init() {
	factory := func(config Config) (Reviewer, error) {
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	RegisterProvider(ProviderOpenAI, factory)
	RegisterProvider(ProviderLMStudio, factory)
}
