package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/formatter"
)

// Publisher is the part of *nats.Conn used by the NATS sink
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes every board on one subject, as board JSON unless an option
// picks another encoding
type NATS struct {
	pub     Publisher
	subject string
	encode  func(*arrivals.Board) ([]byte, error)
	conn    *nats.Conn
}

// NATSOption configures a NATS sink
type NATSOption func(*NATS)

// WithSIRI publishes SIRI estimated timetables with references under codespace
func WithSIRI(codespace string) NATSOption {
	return func(n *NATS) {
		n.encode = func(b *arrivals.Board) ([]byte, error) {
			return formatter.BuildSIRI(b, codespace)
		}
	}
}

// WithFormat selects the payload by its config name; "siri" picks WithSIRI,
// anything else keeps board JSON
func WithFormat(format, codespace string) NATSOption {
	if format == "siri" {
		return WithSIRI(codespace)
	}
	return func(*NATS) {}
}

// NewNATS wraps an existing publisher
func NewNATS(pub Publisher, subject string, opts ...NATSOption) *NATS {
	n := &NATS{pub: pub, subject: subject, encode: formatter.BuildJSON}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// DialNATS connects to url with reconnects enabled and returns a sink
// publishing on subject
func DialNATS(url, subject string, logger *zap.Logger, opts ...NATSOption) (*NATS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("gtfsrt-arrivals"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	s := NewNATS(nc, subject, opts...)
	s.conn = nc
	return s, nil
}

// Present implements Sink
func (n *NATS) Present(_ context.Context, b *arrivals.Board) error {
	data, err := n.encode(b)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

// Close drains the connection opened by DialNATS
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
