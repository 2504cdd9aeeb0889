package fetch

import (
	"bytes"
	"fmt"
	"time"
)

// Request is the fixed GET issued once per cycle
type Request struct {
	Host      string
	Path      string
	UserAgent string
	APIKey    string
}

// Bytes renders the request: protobuf accepted, compression refused and
// the connection closed after one response.
func (r Request) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", r.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", r.Host)
	if r.UserAgent != "" {
		fmt.Fprintf(&b, "User-Agent: %s\r\n", r.UserAgent)
	}
	b.WriteString("Accept: application/x-protobuf\r\n")
	b.WriteString("Accept-Encoding: identity\r\n")
	b.WriteString("Connection: close\r\n")
	if r.APIKey != "" {
		fmt.Fprintf(&b, "x-api-key: %s\r\n", r.APIKey)
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// writeRequest writes req fully, looping over partial writes
func writeRequest(conn Conn, req []byte, deadline time.Time) error {
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %v", ErrConnection, err)
	}
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()

	written := 0
	for written < len(req) {
		n, err := conn.Write(req[written:])
		if err != nil {
			if isTimeout(err) {
				return fmt.Errorf("%w: writing request: %v", ErrTimeout, err)
			}
			return fmt.Errorf("%w: writing request: %v", ErrConnection, err)
		}
		written += n
	}
	return nil
}
