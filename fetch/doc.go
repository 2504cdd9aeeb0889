// Package fetch downloads one GTFS-RT snapshot over a raw HTTP/1.1 connection.
//
// The package deliberately understands only declared-length responses:
//   - Stream.ReadLine slices CRLF lines off a buffered connection under a deadline
//   - Framer walks the status line and header block and yields the payload length
//   - LoadBody reads exactly that many bytes into a single allocation
//
// Client ties the three together with a dialer and the fixed request. Every
// buffer involved has a size fixed by Options, so the memory used by a fetch
// is bounded by PayloadCap plus a few kilobytes.
package fetch
