package fetch

import (
	"errors"
	"net"
	"os"
)

var (
	// ErrConnection means the stream could not be opened or closed early
	ErrConnection = errors.New("connection failure")
	// ErrFraming means the status line or headers are unusable
	ErrFraming = errors.New("framing error")
	// ErrTimeout means a line, header or body deadline passed
	ErrTimeout = errors.New("timeout")
	// ErrAllocation means the payload buffer could not be sized within the cap
	ErrAllocation = errors.New("allocation failure")
)

// Kind returns a short label for err, used in logs and metric labels
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrFraming):
		return "framing"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrConnection):
		return "connection"
	}
	return "other"
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// readFailure maps a low-level read error onto the package sentinels.
// Anything that is not a deadline (EOF, reset, closed) is a lost connection.
func readFailure(err error) error {
	if isTimeout(err) {
		return ErrTimeout
	}
	return ErrConnection
}
