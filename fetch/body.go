package fetch

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const progressEvery = 2 * time.Second

// RawResponse is the payload of one response. Body is exactly the declared
// length; the caller owns it until Release.
type RawResponse struct {
	Body []byte
}

// Len returns the payload length
func (r *RawResponse) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Body)
}

// Release drops the payload so it can be collected before the next cycle
func (r *RawResponse) Release() {
	if r != nil {
		r.Body = nil
	}
}

// BodyLimits bounds one body download
type BodyLimits struct {
	Cap         int           // hard cap on the payload length
	Chunk       int           // maximum bytes moved per read call
	Timeout     time.Duration // overall deadline, measured from the start of the load
	IdleTimeout time.Duration // deadline reset by every read that makes progress
}

// LoadBody reads exactly length bytes into a single allocation. Each read is
// bounded by the earlier of the overall and idle deadlines. On any failure
// the partial buffer is discarded.
func (s *Stream) LoadBody(length int, lim BodyLimits, logger *zap.Logger) (*RawResponse, error) {
	if length <= 0 || length > lim.Cap {
		return nil, fmt.Errorf("%w: payload of %d bytes outside (0, %d]", ErrAllocation, length, lim.Cap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	chunk := lim.Chunk
	if chunk <= 0 {
		chunk = length
	}

	buf := make([]byte, length)
	got := 0

	start := s.now()
	overall := start.Add(lim.Timeout)
	lastProgress := start
	lastLog := start

	for got < length {
		now := s.now()
		if !now.Before(overall) {
			return nil, fmt.Errorf("%w: overall body deadline after %d/%d bytes", ErrTimeout, got, length)
		}
		idle := lastProgress.Add(lim.IdleTimeout)
		if !now.Before(idle) {
			return nil, fmt.Errorf("%w: idle body deadline after %d/%d bytes", ErrTimeout, got, length)
		}
		deadline := idle
		if overall.Before(deadline) {
			deadline = overall
		}
		if err := s.setReadDeadline(deadline); err != nil {
			return nil, err
		}

		want := length - got
		if want > chunk {
			want = chunk
		}
		n, err := s.br.Read(buf[got : got+want])
		if n > 0 {
			got += n
			lastProgress = s.now()
		}
		if err != nil && got < length {
			cause := readFailure(err)
			if cause == ErrTimeout {
				which := "idle"
				if !s.now().Before(overall) {
					which = "overall"
				}
				return nil, fmt.Errorf("%w: %s body deadline after %d/%d bytes", ErrTimeout, which, got, length)
			}
			return nil, fmt.Errorf("%w: body ended after %d/%d bytes: %v", cause, got, length, err)
		}
		if now := s.now(); now.Sub(lastLog) >= progressEvery {
			logger.Debug("downloading body", zap.Int("got", got), zap.Int("expected", length))
			lastLog = now
		}
	}

	return &RawResponse{Body: buf}, nil
}
