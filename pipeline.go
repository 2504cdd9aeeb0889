package gtfsrtarrivals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartystreets/clock"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/config"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/fetch"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/metrics"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/sink"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/utils"
)

// ErrSink wraps failures of the presentation sink
var ErrSink = errors.New("sink error")

// Fetcher downloads one feed payload. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context) (*fetch.RawResponse, error)
}

// Pipeline runs fetch → decode → select → present cycles for one filter
type Pipeline struct {
	cfg     *config.AppConfig
	filter  gtfsrt.Filter
	fetcher Fetcher
	sink    sink.Sink
	clock   *clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
	health  *Health
	yield   func()

	acc        *gtfsrt.Accumulator
	lastFeedTS int64
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithFetcher replaces the network client built from the config
func WithFetcher(f Fetcher) Option { return func(p *Pipeline) { p.fetcher = f } }

// WithClock sets the wall clock; nil means system time
func WithClock(c *clock.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithMetrics sets the collectors updated after each cycle
func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithHealth sets the state served on the health endpoint
func WithHealth(h *Health) Option { return func(p *Pipeline) { p.health = h } }

// WithYield sets the decoder's cooperative yield hook
func WithYield(fn func()) Option { return func(p *Pipeline) { p.yield = fn } }

// FetchOptions maps the configuration onto fetch.Options
func FetchOptions(cfg *config.AppConfig) fetch.Options {
	return fetch.Options{
		URL:             cfg.Feed.URL,
		APIKey:          cfg.Feed.APIKey,
		UserAgent:       cfg.Feed.UserAgent,
		InsecureTLS:     cfg.Feed.InsecureTLS,
		PayloadCap:      cfg.Limits.PayloadCapBytes,
		ReadChunk:       cfg.Limits.ReadChunkBytes,
		HeaderLineBytes: cfg.Limits.HeaderLineBytes,
		ConnectTimeout:  cfg.Timeouts.Connect(),
		WriteTimeout:    cfg.Timeouts.Write(),
		HeaderTimeout:   cfg.Timeouts.Header(),
		BodyTimeout:     cfg.Timeouts.Body(),
		IdleTimeout:     cfg.Timeouts.Idle(),
	}
}

// NewPipeline builds a pipeline presenting to s
func NewPipeline(cfg *config.AppConfig, s sink.Sink, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if s == nil {
		return nil, errors.New("nil sink")
	}
	p := &Pipeline{
		cfg:    cfg,
		filter: gtfsrt.Filter{RouteID: cfg.Filter.Route, StopID: cfg.Filter.Stop},
		sink:   s,
		acc:    gtfsrt.NewAccumulator(cfg.Limits.MaxArrivals),
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.fetcher == nil {
		c, err := fetch.NewClient(FetchOptions(cfg), nil, p.clock, p.logger)
		if err != nil {
			return nil, err
		}
		p.fetcher = c
	}
	return p, nil
}

// ErrorKind classifies a cycle error for logs and metrics
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gtfsrt.ErrDecode):
		return "decode"
	case errors.Is(err, ErrSink):
		return "sink"
	}
	return fetch.Kind(err)
}

// Cycle performs one complete fetch-decode-present pass. Errors are logged
// and returned; no state from a failed cycle is kept and the sink is left
// untouched.
func (p *Pipeline) Cycle(ctx context.Context) (*arrivals.Board, error) {
	log := p.logger.With(zap.String("cycle_id", uuid.NewString()))
	start := p.clock.UTCNow()

	board, err := p.cycle(ctx, log)

	kind := ErrorKind(err)
	p.metrics.ObserveCycle(kind)
	if err != nil {
		log.Error("cycle failed", zap.String("kind", kind), zap.Error(err))
		p.health.recordFailure(err, p.clock.UTCNow())
		return nil, err
	}
	log.Info("cycle complete",
		zap.Int("arrivals", len(board.Arrivals)),
		zap.Duration("took", p.clock.UTCNow().Sub(start)))
	return board, nil
}

func (p *Pipeline) cycle(ctx context.Context, log *zap.Logger) (*arrivals.Board, error) {
	raw, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.metrics.ObservePayload(raw.Len())
	log.Debug("payload received", zap.Int("bytes", raw.Len()))

	board, info, err := p.Process(raw.Body, log)
	raw.Release()
	if err != nil {
		return nil, err
	}

	if err := p.sink.Present(ctx, board); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSink, err)
	}
	p.health.recordSuccess(p.clock.UTCNow(), info.Timestamp, len(board.Arrivals))
	return board, nil
}

// Process decodes one payload and builds the board. The accumulator is
// reset before and after the pass, so nothing outlives the call.
func (p *Pipeline) Process(payload []byte, log *zap.Logger) (*arrivals.Board, gtfsrt.FeedInfo, error) {
	if log == nil {
		log = p.logger
	}
	p.acc.Reset()
	defer p.acc.Reset()

	opts := []gtfsrt.DecodeOption{}
	if p.yield != nil {
		opts = append(opts, gtfsrt.WithYield(p.yield))
	}
	t0 := time.Now()
	info, err := gtfsrt.DecodeFeed(payload, p.filter, p.acc, opts...)
	took := time.Since(t0)
	if err != nil {
		return nil, info, err
	}
	p.metrics.ObserveDecode(took, p.acc.Len(), info.ScratchDropped, info.Dropped, info.Timestamp)

	now := p.clock.UTCNow()
	fields := []zap.Field{
		zap.Int("entities", info.Entities),
		zap.Int("trip_updates", info.TripUpdates),
		zap.Int("matches", p.acc.Len()),
		zap.Duration("decode", took),
	}
	if info.Timestamp > 0 {
		fields = append(fields,
			zap.String("feed_time", utils.Iso8601FromUnixSeconds(info.Timestamp)),
			zap.Duration("feed_age", utils.FeedAge(info.Timestamp, now)))
	}
	log.Debug("feed decoded", fields...)
	if info.Dropped > 0 || info.ScratchDropped > 0 {
		log.Warn("matches dropped by capacity bounds",
			zap.Int("accumulator", info.Dropped),
			zap.Int("scratch", info.ScratchDropped))
	}
	if info.Timestamp > 0 && info.Timestamp < p.lastFeedTS {
		log.Warn("feed timestamp moved backwards",
			zap.Int64("previous", p.lastFeedTS),
			zap.Int64("current", info.Timestamp))
	}
	if info.Timestamp > p.lastFeedTS {
		p.lastFeedTS = info.Timestamp
	}

	future := arrivals.Select(p.acc.Items(), now, p.cfg.Limits.FutureCount)
	board := arrivals.NewBoard(p.filter.RouteID, p.filter.StopID, future, now, p.cfg.Limits.PresentationCount)
	board.FeedTime = info.Timestamp
	return board, info, nil
}
