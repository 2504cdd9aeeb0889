package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/fetch"
)

// fileFetcher replays a captured feed from disk under the same payload cap
// as the network client. This is CLI-specific and not part of the library.
type fileFetcher struct {
	path string
	cap  int
}

func newFileFetcher(path string, payloadCap int) *fileFetcher {
	return &fileFetcher{path: path, cap: payloadCap}
}

func (f *fileFetcher) Fetch(_ context.Context) (*fetch.RawResponse, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", fetch.ErrConnection, f.path, err)
	}
	defer func() { _ = file.Close() }()

	st, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", fetch.ErrConnection, f.path, err)
	}
	size := st.Size()
	if size <= 0 || size > int64(f.cap) {
		return nil, fmt.Errorf("%w: %s is %d bytes, cap %d", fetch.ErrAllocation, f.path, size, f.cap)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(file, buf); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", fetch.ErrConnection, f.path, err)
	}
	return &fetch.RawResponse{Body: buf}, nil
}
