package fetch

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/smartystreets/clock"
	"go.uber.org/zap"
)

// Options configures a Client. Zero sizes and timeouts are not defaulted
// here; callers pass fully populated values (see config.ApplyDefaults).
type Options struct {
	URL         string
	APIKey      string
	UserAgent   string
	InsecureTLS bool

	PayloadCap      int
	ReadChunk       int
	HeaderLineBytes int

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	HeaderTimeout  time.Duration
	BodyTimeout    time.Duration
	IdleTimeout    time.Duration
}

// Client fetches one declared-length payload per call
type Client struct {
	dialer  Dialer
	opts    Options
	addr    string
	request []byte
	clock   *clock.Clock
	logger  *zap.Logger
}

// NewClient parses opts.URL and prepares the request bytes. A nil dialer
// selects TLS or plain TCP from the URL scheme.
func NewClient(opts Options, dialer Dialer, clk *clock.Clock, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("feed url %q: unsupported scheme %q", opts.URL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("feed url %q: missing host", opts.URL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("feed url %q: bad port: %w", opts.URL, err)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if dialer == nil {
		dialer = NewDialer(u.Scheme, host, opts.InsecureTLS, opts.ConnectTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	req := Request{Host: u.Host, Path: path, UserAgent: opts.UserAgent, APIKey: opts.APIKey}
	return &Client{
		dialer:  dialer,
		opts:    opts,
		addr:    net.JoinHostPort(host, port),
		request: req.Bytes(),
		clock:   clk,
		logger:  logger,
	}, nil
}

// Addr returns the host:port the client dials
func (c *Client) Addr() string { return c.addr }

// Fetch opens a connection, sends the request and returns the payload.
// The connection is always closed before Fetch returns.
func (c *Client) Fetch(ctx context.Context) (*RawResponse, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	conn, err := c.dialer.DialContext(dctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrConnection, c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	return c.exchange(conn)
}

func (c *Client) exchange(conn Conn) (*RawResponse, error) {
	if err := writeRequest(conn, c.request, c.clock.UTCNow().Add(c.opts.WriteTimeout)); err != nil {
		return nil, err
	}

	stream := NewStream(conn, c.opts.ReadChunk, c.clock)
	framer := NewFramer(stream, c.opts.HeaderLineBytes, c.opts.HeaderTimeout, c.opts.PayloadCap)
	framer.apiKeyPresent = c.opts.APIKey != ""
	length, err := framer.Frame()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("response framed",
		zap.String("status", framer.Status()),
		zap.Int("content_length", length))

	return stream.LoadBody(length, BodyLimits{
		Cap:         c.opts.PayloadCap,
		Chunk:       c.opts.ReadChunk,
		Timeout:     c.opts.BodyTimeout,
		IdleTimeout: c.opts.IdleTimeout,
	}, c.logger)
}
