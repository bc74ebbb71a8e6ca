// Package events publishes scan notifications to NATS and HTTP webhooks.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/score"
)

// SubjectScanCompleted is the default subject for scan completion events.
const SubjectScanCompleted = "codeshield.scan.completed"

// ScanCompleted is the payload published after every scan.
type ScanCompleted struct {
	ScanID         string        `json:"scanId"`
	Filename       string        `json:"filename,omitempty"`
	Language       string        `json:"language,omitempty"`
	SecurityScore  float64       `json:"securityScore"`
	MaxScore       float64       `json:"maxScore"`
	Summary        score.Summary `json:"summary"`
	Suppressed     int           `json:"suppressed"`
	SemanticStatus string        `json:"semanticStatus"`
	DurationMS     int64         `json:"durationMs"`
	Timestamp      time.Time     `json:"timestamp"`
}

// NewScanCompleted builds the event payload for a scan result.
func NewScanCompleted(r *engine.ScanResult, now time.Time) ScanCompleted {
	return ScanCompleted{
		ScanID:         r.ID,
		Filename:       r.Filename,
		Language:       r.Language,
		SecurityScore:  r.SecurityScore,
		MaxScore:       r.MaxScore,
		Summary:        r.Summary,
		Suppressed:     r.Suppressed,
		SemanticStatus: string(r.Semantic.Status),
		DurationMS:     r.DurationMS,
		Timestamp:      now.UTC(),
	}
}

// Publisher sends scan events.
type Publisher interface {
	PublishScanCompleted(ctx context.Context, r *engine.ScanResult) error
	Close()
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishScanCompleted(context.Context, *engine.ScanResult) error { return nil }
func (NopPublisher) Close()                                                         {}

// NATSPublisher publishes events to NATS.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
	now     func() time.Time
}

// NewNATSPublisher connects to natsURL. The connection keeps retrying in the
// background, so a broker that is down at startup is not an error.
func NewNATSPublisher(natsURL, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subject == "" {
		subject = SubjectScanCompleted
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("codeshield"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	logger.Info("event publisher ready", zap.String("url", natsURL), zap.String("subject", subject))

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// PublishScanCompleted publishes the completion event for r.
func (p *NATSPublisher) PublishScanCompleted(ctx context.Context, r *engine.ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NewScanCompleted(r, p.now()))
	if err != nil {
		return fmt.Errorf("failed to encode scan event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish scan event: %w", err)
	}

	p.logger.Debug("published scan event", zap.String("scan_id", r.ID), zap.String("subject", p.subject))
	return nil
}

// IsConnected reports whether the NATS connection is currently up.
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	p.logger.Info("event publisher closed")
}
