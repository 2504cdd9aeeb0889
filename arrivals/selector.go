package arrivals

import (
	"slices"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/gtfsrt"
)

// DefaultFutureCount is the number of future arrivals kept by Select
const DefaultFutureCount = 10

// Select sorts items by time, keeps those at or after now and returns at
// most limit of them. Arrivals sharing a timestamp keep their accumulation
// order. items is not modified.
func Select(items []gtfsrt.MatchedArrival, now time.Time, limit int) []gtfsrt.MatchedArrival {
	if limit <= 0 {
		limit = DefaultFutureCount
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b gtfsrt.MatchedArrival) int {
		switch {
		case a.Epoch < b.Epoch:
			return -1
		case a.Epoch > b.Epoch:
			return 1
		}
		return 0
	})

	cutoff := now.Unix()
	out := make([]gtfsrt.MatchedArrival, 0, min(limit, len(sorted)))
	for _, a := range sorted {
		if len(out) == limit {
			break
		}
		if a.Epoch >= cutoff {
			out = append(out, a)
		}
	}
	return out
}
