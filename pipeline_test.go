package gtfsrtarrivals

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/config"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/fetch"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/internal/feedtest"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/metrics"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/sink"
)

const nowEpoch = 1700000000

var frozen = time.Unix(nowEpoch, 0).UTC()

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(`
feed:
  url: http://feeds.example.com/gtfs-ace
filter:
  route: R1
  stop: S1
limits:
  readChunkBytes: 16
`))
	require.NoError(t, err)
	return cfg
}

func testFeed(t *testing.T, feedTS uint64) []byte {
	t.Helper()
	return feedtest.Marshal(t, feedtest.Feed(feedTS,
		feedtest.Trip{TripID: "late", RouteID: "R1", Stops: []feedtest.Stop{{StopID: "S1", Arrival: nowEpoch + 600}}},
		feedtest.Trip{TripID: "gone", RouteID: "R1", Stops: []feedtest.Stop{{StopID: "S1", Arrival: nowEpoch - 30}}},
		feedtest.Trip{TripID: "other", RouteID: "R2", Stops: []feedtest.Stop{{StopID: "S1", Arrival: nowEpoch + 10}}},
		feedtest.Trip{TripID: "next", RouteID: "R1", Stops: []feedtest.Stop{{StopID: "S0", Arrival: nowEpoch}, {StopID: "S1", Departure: nowEpoch + 65}}},
	))
}

// recorder is a sink that keeps every board it was given
type recorder struct {
	boards []*arrivals.Board
	err    error
}

func (r *recorder) Present(_ context.Context, b *arrivals.Board) error {
	r.boards = append(r.boards, b)
	return r.err
}

func newTestPipeline(t *testing.T, d fetch.Dialer, s sink.Sink, opts ...Option) *Pipeline {
	t.Helper()
	cfg := testConfig(t)
	clk := clock.Freeze(frozen)
	c, err := fetch.NewClient(FetchOptions(cfg), d, clk, nil)
	require.NoError(t, err)
	base := []Option{WithFetcher(c), WithClock(clk)}
	p, err := NewPipeline(cfg, s, append(base, opts...)...)
	require.NoError(t, err)
	return p
}

func TestCycle_Board(t *testing.T) {
	body := testFeed(t, nowEpoch-20)
	rec := &recorder{}
	p := newTestPipeline(t, &feedtest.Dialer{Conns: []net.Conn{feedtest.NewChunkConn(feedtest.Response(body), 0)}}, rec)

	board, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.boards, 1)
	assert.Same(t, board, rec.boards[0])

	assert.Equal(t, "R1", board.Route)
	assert.Equal(t, "S1", board.Stop)
	assert.Equal(t, int64(nowEpoch), board.GeneratedAt)
	assert.Equal(t, int64(nowEpoch-20), board.FeedTime)
	assert.Equal(t, []arrivals.Countdown{
		{Minutes: 1, Seconds: 5, Epoch: nowEpoch + 65, RecordID: "next"},
		{Minutes: 10, Seconds: 0, Epoch: nowEpoch + 600, RecordID: "late"},
	}, board.Arrivals)
}

func TestCycle_ReadSizeDoesNotMatter(t *testing.T) {
	body := testFeed(t, nowEpoch)
	var boards []*arrivals.Board
	for _, chunk := range []int{1, 7, 0} {
		rec := &recorder{}
		conn := feedtest.NewChunkConn(feedtest.Response(body), chunk)
		p := newTestPipeline(t, &feedtest.Dialer{Conns: []net.Conn{conn}}, rec)
		b, err := p.Cycle(context.Background())
		require.NoError(t, err, "chunk=%d", chunk)
		boards = append(boards, b)
	}
	assert.Equal(t, boards[2], boards[0])
	assert.Equal(t, boards[2], boards[1])
}

func TestCycle_NoArrivals(t *testing.T) {
	body := feedtest.Marshal(t, feedtest.Feed(nowEpoch))
	rec := &recorder{}
	p := newTestPipeline(t, &feedtest.Dialer{Conns: []net.Conn{feedtest.NewChunkConn(feedtest.Response(body), 0)}}, rec)

	board, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.True(t, board.Empty())
	require.Len(t, rec.boards, 1)
}

func TestCycle_FailuresLeaveSinkAlone(t *testing.T) {
	tests := []struct {
		name string
		conn net.Conn
		err  error
		kind string
	}{
		{"dial", nil, fetch.ErrConnection, "connection"},
		{"status", feedtest.NewChunkConn([]byte("HTTP/1.1 500 Internal Server Error\r\n\r\n"), 0), fetch.ErrFraming, "framing"},
		{"short body", feedtest.NewChunkConn([]byte("HTTP/1.1 200 OK\r\nContent-Length: 50\r\n\r\nabc"), 0), fetch.ErrConnection, "connection"},
		{"garbage", feedtest.NewChunkConn(feedtest.Response([]byte{0x0a, 0x7f, 0x01}), 0), gtfsrt.ErrDecode, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &feedtest.Dialer{Err: errors.New("connection refused")}
			if tt.conn != nil {
				d = &feedtest.Dialer{Conns: []net.Conn{tt.conn}}
			}
			rec := &recorder{}
			health := NewHealth()
			reg := prometheus.NewRegistry()
			p := newTestPipeline(t, d, rec, WithHealth(health), WithMetrics(metrics.New(reg)))

			board, err := p.Cycle(context.Background())
			require.ErrorIs(t, err, tt.err)
			assert.Nil(t, board)
			assert.Empty(t, rec.boards)
			assert.Equal(t, tt.kind, ErrorKind(err))

			snap := health.snapshot()
			assert.Equal(t, "degraded", snap.Status)
			assert.Equal(t, tt.kind, snap.LastErrorKind)
			assert.Equal(t, 1, snap.ConsecutiveFailures)

			expected := `
# HELP gtfsrt_arrivals_cycles_total Poll cycles by outcome (ok, connection, framing, timeout, allocation, decode, sink).
# TYPE gtfsrt_arrivals_cycles_total counter
gtfsrt_arrivals_cycles_total{outcome="` + tt.kind + `"} 1
`
			require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gtfsrt_arrivals_cycles_total"))
		})
	}
}

func TestCycle_SinkError(t *testing.T) {
	body := testFeed(t, nowEpoch)
	rec := &recorder{err: errors.New("display unplugged")}
	p := newTestPipeline(t, &feedtest.Dialer{Conns: []net.Conn{feedtest.NewChunkConn(feedtest.Response(body), 0)}}, rec)

	_, err := p.Cycle(context.Background())
	require.ErrorIs(t, err, ErrSink)
	assert.Equal(t, "sink", ErrorKind(err))
}

func TestCycle_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	conns := []net.Conn{
		feedtest.NewChunkConn(feedtest.Response(testFeed(t, nowEpoch)), 0),
		feedtest.NewChunkConn(feedtest.Response(testFeed(t, nowEpoch-60)), 0),
	}
	health := NewHealth()
	p := newTestPipeline(t, &feedtest.Dialer{Conns: conns}, &recorder{}, WithLogger(zap.New(core)), WithHealth(health))

	_, err := p.Cycle(context.Background())
	require.NoError(t, err)
	_, err = p.Cycle(context.Background())
	require.NoError(t, err)

	done := logs.FilterMessage("cycle complete").All()
	require.Len(t, done, 2)
	first := done[0].ContextMap()["cycle_id"]
	second := done[1].ContextMap()["cycle_id"]
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, done[0].ContextMap()["arrivals"])

	back := logs.FilterMessage("feed timestamp moved backwards").All()
	require.Len(t, back, 1)
	assert.EqualValues(t, nowEpoch, back[0].ContextMap()["previous"])

	snap := health.snapshot()
	assert.Equal(t, "ok", snap.Status)
	assert.Equal(t, int64(nowEpoch), snap.LatestGTFSRealtimeEpoch)
	assert.Equal(t, 2, snap.LastMatches)
}

func TestProcess_YieldDoesNotChangeResult(t *testing.T) {
	var stops []feedtest.Stop
	for i := 0; i < 2*gtfsrt.DefaultYieldEvery; i++ {
		stops = append(stops, feedtest.Stop{StopID: "S2", Arrival: nowEpoch + int64(i)})
	}
	stops = append(stops, feedtest.Stop{StopID: "S1", Arrival: nowEpoch + 300})
	body := feedtest.Marshal(t, feedtest.Feed(nowEpoch,
		feedtest.Trip{TripID: "late", RouteID: "R1", Stops: []feedtest.Stop{{StopID: "S1", Arrival: nowEpoch + 600}}},
		feedtest.Trip{TripID: "loop", RouteID: "R1", Stops: stops},
		feedtest.Trip{TripID: "next", RouteID: "R1", Stops: []feedtest.Stop{{StopID: "S1", Departure: nowEpoch + 65}}},
	))
	calls := 0
	plain := newTestPipeline(t, nil, &recorder{})
	yielding := newTestPipeline(t, nil, &recorder{}, WithYield(func() { calls++ }))

	want, _, err := plain.Process(body, nil)
	require.NoError(t, err)
	got, info, err := yielding.Process(body, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 3, info.Entities)
	assert.Positive(t, calls)
	require.Len(t, got.Arrivals, 3)
	assert.Equal(t, "next", got.Arrivals[0].RecordID)
	assert.Equal(t, "loop", got.Arrivals[1].RecordID)
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	rec := &recorder{}
	body := testFeed(t, nowEpoch)
	p := newTestPipeline(t, &feedtest.Dialer{Conns: []net.Conn{feedtest.NewChunkConn(feedtest.Response(body), 0)}}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Len(t, rec.boards, 1, "a started cycle runs to completion")
}

func TestNewPipeline(t *testing.T) {
	_, err := NewPipeline(nil, &recorder{})
	require.Error(t, err)
	_, err = NewPipeline(testConfig(t), nil)
	require.Error(t, err)

	p, err := NewPipeline(testConfig(t), &recorder{})
	require.NoError(t, err)
	c, ok := p.fetcher.(*fetch.Client)
	require.True(t, ok)
	assert.Equal(t, "feeds.example.com:80", c.Addr())
}

func TestFetchOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.APIKey = "k"
	opts := FetchOptions(cfg)
	assert.Equal(t, cfg.Feed.URL, opts.URL)
	assert.Equal(t, "k", opts.APIKey)
	assert.Equal(t, 16, opts.ReadChunk)
	assert.Equal(t, config.DefaultPayloadCapBytes, opts.PayloadCap)
	assert.Equal(t, 15*time.Second, opts.IdleTimeout)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "decode", ErrorKind(gtfsrt.ErrDecode))
	assert.Equal(t, "sink", ErrorKind(ErrSink))
	assert.Equal(t, "timeout", ErrorKind(fetch.ErrTimeout))
	assert.Equal(t, "other", ErrorKind(errors.New("x")))
}
