package fetch

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

type frameState int

const (
	stateStatusLine frameState = iota
	stateHeaders
	stateDone
	stateFailed
)

func (s frameState) String() string {
	switch s {
	case stateStatusLine:
		return "status-line"
	case stateHeaders:
		return "headers"
	case stateDone:
		return "done"
	}
	return "failed"
}

var (
	headerContentLength    = []byte("content-length")
	headerTransferEncoding = []byte("transfer-encoding")
	headerContentEncoding  = []byte("content-encoding")
)

// Framer parses the status line and header block of one response and
// decides how many payload bytes follow. It only accepts a 200 status with
// an explicit Content-Length no larger than the payload cap.
type Framer struct {
	stream        *Stream
	line          []byte
	lineTimeout   time.Duration
	payloadCap    int
	apiKeyPresent bool

	state         frameState
	status        string
	hasLength     bool
	contentLength int64
	chunked       bool
	encoding      string
}

// NewFramer reuses one lineBytes buffer for every status and header line
func NewFramer(s *Stream, lineBytes int, lineTimeout time.Duration, payloadCap int) *Framer {
	return &Framer{
		stream:      s,
		line:        make([]byte, lineBytes),
		lineTimeout: lineTimeout,
		payloadCap:  payloadCap,
	}
}

// Status returns the status line read so far
func (f *Framer) Status() string { return f.status }

// Frame runs the state machine to completion and returns the payload length
func (f *Framer) Frame() (int, error) {
	for {
		switch f.state {
		case stateStatusLine:
			if err := f.readStatus(); err != nil {
				return 0, f.fail(err)
			}
			f.state = stateHeaders
		case stateHeaders:
			done, err := f.readHeader()
			if err != nil {
				return 0, f.fail(err)
			}
			if done {
				n, err := f.payloadLength()
				if err != nil {
					return 0, f.fail(err)
				}
				f.state = stateDone
				return n, nil
			}
		case stateDone:
			return int(f.contentLength), nil
		default:
			return 0, fmt.Errorf("%w: framer already failed", ErrFraming)
		}
	}
}

func (f *Framer) fail(err error) error {
	at := f.state
	f.state = stateFailed
	return fmt.Errorf("%s: %w", at, err)
}

func (f *Framer) readLine() ([]byte, error) {
	n, err := f.stream.ReadLine(f.line, f.stream.now().Add(f.lineTimeout))
	if err != nil {
		return nil, err
	}
	return f.line[:n], nil
}

func (f *Framer) readStatus() error {
	line, err := f.readLine()
	if err != nil {
		return err
	}
	f.status = string(line)
	code, ok := statusCode(line)
	if !ok {
		return fmt.Errorf("%w: malformed status line %q", ErrFraming, f.status)
	}
	if code == 200 {
		return nil
	}
	if (code == 401 || code == 403) && !f.apiKeyPresent {
		return fmt.Errorf("%w: HTTP %d (endpoint appears to require an api key)", ErrFraming, code)
	}
	return fmt.Errorf("%w: HTTP %d", ErrFraming, code)
}

// statusCode extracts the code from "HTTP/1.x NNN reason"
func statusCode(line []byte) (int, bool) {
	if !bytes.HasPrefix(line, []byte("HTTP/")) {
		return 0, false
	}
	sp := bytes.IndexByte(line, ' ')
	if sp < 0 {
		return 0, false
	}
	rest := bytes.TrimLeft(line[sp:], " ")
	if len(rest) < 3 || (len(rest) > 3 && rest[3] != ' ') {
		return 0, false
	}
	code, err := strconv.Atoi(string(rest[:3]))
	if err != nil {
		return 0, false
	}
	return code, true
}

// readHeader consumes one header line; done reports the blank terminator
func (f *Framer) readHeader() (done bool, err error) {
	line, err := f.readLine()
	if err != nil {
		return false, err
	}
	if len(line) == 0 {
		return true, nil
	}
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return false, nil
	}
	name := bytes.TrimSpace(line[:colon])
	value := bytes.TrimSpace(line[colon+1:])
	switch {
	case bytes.EqualFold(name, headerContentLength):
		n, perr := strconv.ParseInt(string(value), 10, 64)
		if perr != nil {
			return false, fmt.Errorf("%w: invalid Content-Length %q", ErrFraming, value)
		}
		if f.hasLength && f.contentLength != n {
			return false, fmt.Errorf("%w: conflicting Content-Length %d and %d", ErrFraming, f.contentLength, n)
		}
		f.hasLength = true
		f.contentLength = n
	case bytes.EqualFold(name, headerTransferEncoding):
		if containsFold(value, []byte("chunked")) {
			f.chunked = true
		}
	case bytes.EqualFold(name, headerContentEncoding):
		f.encoding = string(bytes.ToLower(value))
	}
	return false, nil
}

func (f *Framer) payloadLength() (int, error) {
	switch {
	case f.chunked:
		return 0, fmt.Errorf("%w: chunked transfer encoding is not supported", ErrFraming)
	case f.encoding != "" && f.encoding != "identity":
		return 0, fmt.Errorf("%w: content encoding %q is not supported", ErrFraming, f.encoding)
	case !f.hasLength:
		return 0, fmt.Errorf("%w: missing Content-Length", ErrFraming)
	case f.contentLength <= 0:
		return 0, fmt.Errorf("%w: non-positive Content-Length %d", ErrFraming, f.contentLength)
	case f.contentLength > int64(f.payloadCap):
		return 0, fmt.Errorf("%w: Content-Length %d exceeds cap %d", ErrFraming, f.contentLength, f.payloadCap)
	}
	return int(f.contentLength), nil
}

func containsFold(s, sub []byte) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if bytes.EqualFold(s[i:i+len(sub)], sub) {
			return true
		}
	}
	return false
}
