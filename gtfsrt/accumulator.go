package gtfsrt

// DefaultCapacity is the number of arrivals retained per decode pass
const DefaultCapacity = 32

// ScratchCapacity is the number of matching stop times buffered per entity
// while its route is still unknown. Further matches for the same entity are
// dropped and counted in FeedInfo.ScratchDropped.
const ScratchCapacity = 16

// Accumulator is the fixed-capacity output of one decode pass. Once full,
// further matches are dropped (and counted) rather than reported as errors.
type Accumulator struct {
	items   []MatchedArrival
	dropped int
}

// NewAccumulator allocates room for capacity arrivals up front
func NewAccumulator(capacity int) *Accumulator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Accumulator{items: make([]MatchedArrival, 0, capacity)}
}

// Add stores an arrival. It reports false when the arrival was not stored,
// either because epoch is zero or because the accumulator is full.
func (a *Accumulator) Add(epoch int64, recordID string) bool {
	if epoch == 0 {
		return false
	}
	if len(a.items) == cap(a.items) {
		a.dropped++
		return false
	}
	a.items = append(a.items, MatchedArrival{Epoch: epoch, RecordID: recordID})
	return true
}

// Len returns the number of stored arrivals
func (a *Accumulator) Len() int { return len(a.items) }

// Cap returns the fixed capacity
func (a *Accumulator) Cap() int { return cap(a.items) }

// Dropped returns the number of matches discarded because the accumulator was full
func (a *Accumulator) Dropped() int { return a.dropped }

// Items returns a copy of the stored arrivals in accumulation order
func (a *Accumulator) Items() []MatchedArrival {
	out := make([]MatchedArrival, len(a.items))
	copy(out, a.items)
	return out
}

// Reset empties the accumulator, keeping its backing array
func (a *Accumulator) Reset() {
	clear(a.items)
	a.items = a.items[:0]
	a.dropped = 0
}

// scratch holds the stop times of one entity until its route is known
type scratch struct {
	times   [ScratchCapacity]int64
	n       int
	dropped int
}

func (s *scratch) add(t int64) {
	if s.n == len(s.times) {
		s.dropped++
		return
	}
	s.times[s.n] = t
	s.n++
}
