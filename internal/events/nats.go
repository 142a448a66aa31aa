// nats.go - NATS publisher for pool events.
//
// The pool hands events to Publisher in commit order; Publisher stamps a sequence number and
// publishes each on <prefix>.<kind>. Core NATS is fire-and-forget: a disconnected publisher
// buffers in the client library until the reconnect buffer overflows.

package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"shielder/internal/metrics"
	"shielder/internal/shielder"
)

// Config of the publisher.
type Config struct {
	URL      string
	Prefix   string
	SenderID string
	Timeout  time.Duration
}

// Publisher implements shielder.EventSink over NATS.
type Publisher struct {
	conn   *nats.Conn
	cfg    Config
	seq    atomic.Uint64
	logger zerolog.Logger
}

// Connect dials the NATS server. Reconnects are unbounded.
func Connect(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "shielder.events"
	}
	logger = logger.With().Str("component", "events").Logger()
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.SenderID),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}
	metrics.NATSConnectionStatus.Set(1)
	return &Publisher{conn: conn, cfg: cfg, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev shielder.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(ev, p.cfg.SenderID, p.seq.Add(1))
	if err != nil {
		return err
	}
	subject := Subject(p.cfg.Prefix, ev.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(string(ev.Kind), "error").Inc()
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Kind), "ok").Inc()
	p.logger.Debug().Str("subject", subject).Uint32("leaf", ev.LeafIndex).Msg("event published")
	return nil
}

// Healthy reports whether the connection is up.
func (p *Publisher) Healthy() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	defer metrics.NATSConnectionStatus.Set(0)
	return p.conn.Drain()
}

// Subscribe delivers every pool event under prefix to handler until the subscription is
// drained. Undecodable messages are logged and skipped.
func Subscribe(conn *nats.Conn, prefix string, logger zerolog.Logger, handler func(Message, shielder.Event)) (*nats.Subscription, error) {
	return conn.Subscribe(prefix+".>", func(msg *nats.Msg) {
		env, ev, err := Decode(msg.Data)
		if err != nil {
			logger.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed event")
			return
		}
		handler(env, ev)
	})
}
