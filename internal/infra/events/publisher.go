package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	nats "github.com/nats-io/nats.go"
)

// Lifecycle subjects, appended to the configured prefix
const (
	SubjectApprovalCreated  = "approval.created"
	SubjectApprovalResolved = "approval.resolved"
	SubjectApprovalConsumed = "approval.consumed"
	SubjectApprovalExpired  = "approval.expired"
	SubjectTaskTransition   = "task.transition"
)

// Envelope wraps every published payload
type Envelope struct {
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NATSPublisher publishes lifecycle events as JSON envelopes on core NATS
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the configured NATS server
func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	wait := cfg.ConnectWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("adgate"),
		nats.Timeout(wait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	return &NATSPublisher{conn: conn, prefix: subjectPrefix(cfg.SubjectPrefix)}, nil
}

func subjectPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, ".")
}

// Subject returns the fully qualified subject for a lifecycle event
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

// Publish implements domain.EventPublisher
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full := p.Subject(subject)
	data, err := json.Marshal(Envelope{Subject: full, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}

	if err := p.conn.Publish(full, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", full, err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

// NoopPublisher discards events
type NoopPublisher struct{}

// Publish implements domain.EventPublisher
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// Close implements domain.EventPublisher
func (NoopPublisher) Close() error { return nil }

// NewPublisher returns a NATS publisher when enabled, otherwise a no-op
func NewPublisher(cfg config.EventsConfig) (domain.EventPublisher, error) {
	if !cfg.NATS.Enabled {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(cfg.NATS)
}

var (
	_ domain.EventPublisher = (*NATSPublisher)(nil)
	_ domain.EventPublisher = NoopPublisher{}
)
