package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces session events on the wire.
const subjectPrefix = "sessions."

// NATSStream implements Stream over NATS, letting the session service
// and the coordinator run in separate processes.
type NATSStream struct {
	conn   *nats.Conn
	config NATSConfig
}

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	Config // Embed base config

	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewNATSStream connects to NATS and returns a stream.
func NewNATSStream(cfg NATSConfig) (*NATSStream, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSStream{conn: conn, config: cfg}, nil
}

// NewNATSStreamFromConn wraps an existing connection.
func NewNATSStreamFromConn(conn *nats.Conn, cfg NATSConfig) *NATSStream {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &NATSStream{conn: conn, config: cfg}
}

// Publish emits an event to all subscribers.
func (s *NATSStream) Publish(ev Event) error {
	if s.conn.IsClosed() {
		return ErrClosed
	}
	if err := Validate(ev); err != nil {
		return err
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.conn.Publish(subjectPrefix+string(ev.Type), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe creates a subscription receiving all session events.
func (s *NATSStream) Subscribe() (Subscription, error) {
	if s.conn.IsClosed() {
		return nil, ErrClosed
	}

	ch := make(chan Event, s.config.BufferSize)

	natsSub, err := s.conn.Subscribe(subjectPrefix+">", func(m *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return
		}
		if !ev.Type.Valid() {
			return
		}
		select {
		case ch <- ev:
		default:
			// Buffer full, drop
		}
	})
	if err != nil {
		close(ch)
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	return &natsSubscription{sub: natsSub, ch: ch}, nil
}

// Close shuts down the NATS connection.
func (s *NATSStream) Close() error {
	s.conn.Close()
	return nil
}

// natsSubscription wraps a NATS subscription.
type natsSubscription struct {
	sub *nats.Subscription
	ch  chan Event
}

// Events returns the event channel.
func (s *natsSubscription) Events() <-chan Event {
	return s.ch
}

// Cancel cancels the subscription.
func (s *natsSubscription) Cancel() error {
	err := s.sub.Unsubscribe()
	close(s.ch)
	return err
}
