package arrivals

import (
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/utils"
)

// DefaultPresentationCount is how many arrivals a board shows
const DefaultPresentationCount = 3

// Countdown is one line of a board
type Countdown struct {
	Minutes  int64  `json:"minutes"`
	Seconds  int64  `json:"seconds"`
	Epoch    int64  `json:"epoch"`
	RecordID string `json:"trip_id"`
}

// Board is what a sink presents after a successful cycle. A board without
// arrivals is the "no events in this snapshot" signal, not an error.
type Board struct {
	Route       string      `json:"route"`
	Stop        string      `json:"stop"`
	GeneratedAt int64       `json:"generated_at"`
	FeedTime    int64       `json:"feed_timestamp,omitempty"`
	Arrivals    []Countdown `json:"arrivals"`
}

// NewBoard converts the first show future arrivals into countdowns from now
func NewBoard(route, stop string, future []gtfsrt.MatchedArrival, now time.Time, show int) *Board {
	if show <= 0 {
		show = DefaultPresentationCount
	}
	b := &Board{
		Route:       route,
		Stop:        stop,
		GeneratedAt: now.Unix(),
		Arrivals:    make([]Countdown, 0, min(show, len(future))),
	}
	for _, a := range future {
		if len(b.Arrivals) == show {
			break
		}
		mins, secs := utils.MinutesSecondsUntil(a.Epoch, now.Unix())
		b.Arrivals = append(b.Arrivals, Countdown{
			Minutes:  mins,
			Seconds:  secs,
			Epoch:    a.Epoch,
			RecordID: a.RecordID,
		})
	}
	return b
}

// Empty reports whether no arrivals matched
func (b *Board) Empty() bool { return b == nil || len(b.Arrivals) == 0 }
