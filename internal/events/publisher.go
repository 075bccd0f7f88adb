// Package events publishes analytics events to NATS for downstream
// consumers. Publishing is best effort: a missing or unreachable broker
// never blocks the chat path.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
	"github.com/rexmccreary15-dotcom/trexai/pkg/metrics"
)

// Publisher fans analytics events out to a NATS subject. The zero
// value (nil) is a no-op publisher.
type Publisher struct {
	conn    *nats.Conn
	subject string
	log     *logger.Logger
}

// Connect dials the broker. An empty URL returns a nil publisher,
// which all methods accept.
func Connect(url, subject string, log *logger.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject, log: log}, nil
}

// Publish sends one event. Failures are logged and counted, never
// returned to the chat path.
func (p *Publisher) Publish(ev model.AnalyticsEvent) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("marshal analytics event", zap.Error(err))
		metrics.AnalyticsEventsTotal.WithLabelValues(ev.EventType, "error").Inc()
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.log.Warn("publish analytics event", zap.Error(err))
		metrics.AnalyticsEventsTotal.WithLabelValues(ev.EventType, "error").Inc()
		return
	}
	metrics.AnalyticsEventsTotal.WithLabelValues(ev.EventType, "published").Inc()
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
