// Package notify publishes game outcomes as they are collected.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const DefaultSubject = "selfplay.outcomes"

// Publisher receives every outcome of a run. Implementations are called from
// a single goroutine.
type Publisher interface {
	Publish(v any) error
	Close() error
}

type Option func(p *NATS)

type NATS struct {
	subject       string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	conn          *nats.Conn
}

func WithMaxReconnects(n int) Option {
	return func(p *NATS) {
		if n > 0 {
			p.maxReconnects = n
		}
	}
}

func WithReconnectWait(wait time.Duration) Option {
	return func(p *NATS) {
		if wait > 0 {
			p.reconnectWait = wait
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *NATS) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewNATS connects to url and publishes outcomes on subject as JSON.
func NewNATS(url, subject string, options ...Option) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	p := &NATS{ // Default values
		subject:       subject,
		maxReconnects: 5,
		reconnectWait: time.Second,
		timeout:       2 * time.Second,
	}
	for _, option := range options {
		option(p)
	}

	opts := []nats.Option{
		nats.Name("selfplay"),
		nats.Timeout(p.timeout),
		nats.MaxReconnects(p.maxReconnects),
		nats.ReconnectWait(p.reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("outcome publisher disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Msgf("outcome publisher reconnected to %s", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	p.conn = conn
	return p, nil
}

func (p *NATS) Subject() string {
	return p.subject
}

func (p *NATS) Publish(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish outcome: %w", err)
	}
	return nil
}

// Close flushes pending outcomes and closes the connection.
func (p *NATS) Close() error {
	return p.conn.Drain()
}
