package fetch

import (
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/internal/feedtest"
)

func payload(n int) []byte {
	r := rand.New(rand.NewSource(int64(n)))
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

func limits(chunk int) BodyLimits {
	return BodyLimits{Cap: 1 << 16, Chunk: chunk, Timeout: 5 * time.Second, IdleTimeout: time.Second}
}

func TestLoadBody_ChunkSizes(t *testing.T) {
	body := payload(5000)
	for _, connChunk := range []int{1, 7, 2048, len(body)} {
		for _, readChunk := range []int{16, 2048, len(body)} {
			s := NewStream(feedtest.NewChunkConn(body, connChunk), 16, nil)
			resp, err := s.LoadBody(len(body), limits(readChunk), nil)
			require.NoError(t, err, "conn=%d read=%d", connChunk, readChunk)
			assert.Equal(t, body, resp.Body, "conn=%d read=%d", connChunk, readChunk)
			assert.Equal(t, len(body), resp.Len())
		}
	}
}

func TestLoadBody_IgnoresTrailingBytes(t *testing.T) {
	data := append(payload(100), []byte("trailing")...)
	s := NewStream(feedtest.NewChunkConn(data, 0), 16, nil)
	resp, err := s.LoadBody(100, limits(32), nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

func TestLoadBody_EarlyEOF(t *testing.T) {
	s := NewStream(feedtest.NewChunkConn(payload(99), 10), 16, nil)
	resp, err := s.LoadBody(100, limits(32), nil)
	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "99/100")
	assert.Nil(t, resp)
}

func TestLoadBody_Allocation(t *testing.T) {
	s := NewStream(feedtest.NewChunkConn(payload(10), 0), 16, nil)
	for _, n := range []int{0, -1, 1<<16 + 1} {
		_, err := s.LoadBody(n, limits(16), nil)
		require.ErrorIs(t, err, ErrAllocation, "length=%d", n)
		assert.Equal(t, "allocation", Kind(err))
	}
}

func TestLoadBody_IdleTimeout(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	go func() { _, _ = server.Write(payload(10)) }()

	s := NewStream(client, 16, nil)
	start := time.Now()
	_, err := s.LoadBody(100, BodyLimits{Cap: 100, Chunk: 16, Timeout: 5 * time.Second, IdleTimeout: 50 * time.Millisecond}, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "idle")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLoadBody_OverallTimeout(t *testing.T) {
	client, server := net.Pipe()
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		_ = client.Close()
		_ = server.Close()
	})
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				if _, err := server.Write([]byte{1}); err != nil {
					return
				}
			}
		}
	}()

	s := NewStream(client, 16, nil)
	_, err := s.LoadBody(1000, BodyLimits{Cap: 1000, Chunk: 16, Timeout: 150 * time.Millisecond, IdleTimeout: time.Second}, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "overall")
}

func TestRawResponse_Release(t *testing.T) {
	r := &RawResponse{Body: []byte("abc")}
	r.Release()
	assert.Zero(t, r.Len())

	var nilResp *RawResponse
	assert.Zero(t, nilResp.Len())
	nilResp.Release()
}
