// Package notify provides context store observers.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/logging"
)

// LogObserver logs every change event at info level.
func LogObserver(logger *slog.Logger) contexts.Observer {
	logger = logging.OrDefault(logger)
	return func(ev contexts.Event) {
		logger.Info("context changed",
			"event", ev.Type,
			"context", ev.ContextID,
			"phase", ev.Context.CurrentPhase,
			"plans", len(ev.Context.PlanningHistory))
	}
}

// Publisher is the subset of *nats.Conn the NATS observer needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes change events as JSON to <prefix>.created and
// <prefix>.updated.
type NATSPublisher struct {
	conn   Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Publisher, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logging.OrDefault(logger),
	}
}

// Connect dials url and returns the connection. The caller owns Close.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("gemini-planner"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// Subject returns the subject an event of typ is published on.
func (p *NATSPublisher) Subject(typ contexts.EventType) string {
	switch typ {
	case contexts.EventCreated:
		return p.prefix + ".created"
	case contexts.EventUpdated:
		return p.prefix + ".updated"
	default:
		return p.prefix + "." + string(typ)
	}
}

// Observe publishes ev. Failures are logged; the store never sees them.
func (p *NATSPublisher) Observe(ev contexts.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("encoding context event", "context", ev.ContextID, "err", err)
		return
	}
	subject := p.Subject(ev.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("publishing context event", "subject", subject, "context", ev.ContextID, "err", err)
	}
}
