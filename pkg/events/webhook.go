package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/httpclient"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook body when a secret
// is configured, formatted as "sha256=<hex>".
const SignatureHeader = "X-Webhook-Signature"

// WebhookConfig holds configuration for a webhook publisher.
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	Headers    map[string]string
	Logger     *zap.Logger
}

// WebhookPublisher posts scan events to an HTTP endpoint.
type WebhookPublisher struct {
	client *httpclient.Client
	config WebhookConfig
	logger *zap.Logger
	now    func() time.Time
}

// webhookEnvelope is the JSON body sent for every event.
type webhookEnvelope struct {
	Event     string        `json:"event"`
	Payload   ScanCompleted `json:"payload"`
	Timestamp string        `json:"timestamp"`
}

// NewWebhookPublisher creates a webhook publisher.
func NewWebhookPublisher(config WebhookConfig) *WebhookPublisher {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookPublisher{
		client: httpclient.NewClient(httpclient.Config{
			Timeout:  config.Timeout,
			RetryMax: config.MaxRetries,
			Logger:   logger,
		}),
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// PublishScanCompleted posts the completion event for r.
func (p *WebhookPublisher) PublishScanCompleted(ctx context.Context, r *engine.ScanResult) error {
	now := p.now()
	body, err := json.Marshal(webhookEnvelope{
		Event:     SubjectScanCompleted,
		Payload:   NewScanCompleted(r, now),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, p.config.Secret))
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	p.logger.Debug("sent scan webhook", zap.String("scan_id", r.ID), zap.Int("status", resp.StatusCode))
	return nil
}

// Close implements Publisher.
func (p *WebhookPublisher) Close() {}

// MultiPublisher fans an event out to several publishers. Every publisher is
// tried; the errors are joined.
type MultiPublisher []Publisher

// PublishScanCompleted implements Publisher.
func (m MultiPublisher) PublishScanCompleted(ctx context.Context, r *engine.ScanResult) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishScanCompleted(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m MultiPublisher) Close() {
	for _, p := range m {
		p.Close()
	}
}
