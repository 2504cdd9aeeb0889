// Package sink delivers arrival boards to whatever displays them.
package sink

import (
	"context"
	"errors"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
)

// Sink presents the board of one successful cycle. Sinks are not called
// when a cycle fails, so the previous board stays on display.
type Sink interface {
	Present(ctx context.Context, b *arrivals.Board) error
}

// Multi fans a board out to several sinks; every sink is tried and the
// errors are joined
type Multi []Sink

// Present implements Sink
func (m Multi) Present(ctx context.Context, b *arrivals.Board) error {
	var errs []error
	for _, s := range m {
		if err := s.Present(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to a Sink
type Func func(ctx context.Context, b *arrivals.Board) error

// Present implements Sink
func (f Func) Present(ctx context.Context, b *arrivals.Board) error { return f(ctx, b) }
