package sink

import (
	"context"
	"io"
	"sync"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/formatter"
)

// Console writes the text board to w, replacing the platform sign
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	title []string
}

// NewConsole returns a console sink; an empty title uses the route and stop
func NewConsole(w io.Writer, title []string) *Console {
	return &Console{w: w, title: title}
}

// Present implements Sink
func (c *Console) Present(_ context.Context, b *arrivals.Board) error {
	title := c.title
	if len(title) == 0 && b != nil {
		title = formatter.DefaultTitle(b.Route, b.Stop)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, "\n"+formatter.BuildText(title, b))
	return err
}
