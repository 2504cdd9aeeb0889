package gtfsrt

import (
	"bytes"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrDecode is returned for any malformed or incomplete payload. The
// accumulator content is not meaningful after a failed pass.
var ErrDecode = errors.New("gtfsrt decode error")

// DefaultYieldEvery is how many stop updates and entities are processed
// between two calls of the yield hook
const DefaultYieldEvery = 64

// GTFS-RT field numbers used by the decoder
const (
	fieldFeedHeader = 1
	fieldFeedEntity = 2

	fieldHeaderVersion   = 1
	fieldHeaderTimestamp = 3

	fieldEntityID         = 1
	fieldEntityTripUpdate = 3

	fieldTripUpdateTrip           = 1
	fieldTripUpdateStopTimeUpdate = 2

	fieldTripTripID  = 1
	fieldTripRouteID = 5

	fieldStopArrival   = 2
	fieldStopDeparture = 3
	fieldStopStopID    = 4

	fieldEventTime = 2
)

// DecodeOption tunes a decode pass
type DecodeOption func(*decoder)

// WithYield installs a hook called periodically during the pass so a
// cooperative scheduler can run other work. It never changes the result.
func WithYield(fn func()) DecodeOption {
	return func(d *decoder) { d.yield = fn }
}

// WithYieldEvery sets how many occurrences are processed between yields
func WithYieldEvery(n int) DecodeOption {
	return func(d *decoder) {
		if n > 0 {
			d.yieldEvery = n
		}
	}
}

type decoder struct {
	route      []byte
	stop       []byte
	acc        *Accumulator
	info       FeedInfo
	yield      func()
	yieldEvery int
	calls      int
}

// field is one decoded tag/value pair. Length-delimited payloads alias the
// input buffer; nothing is copied.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	bytes []byte
	off   int
	u     uint64
}

// entityState is the identifying context of the entity being decoded
type entityState struct {
	hasID         bool
	hasTripUpdate bool
	hasTrip       bool
	hasRoute      bool
	tripID        []byte
	routeID       []byte
	times         scratch
}

// stopEvent is one StopTimeEvent; only its absolute time is used
type stopEvent struct {
	has  bool
	time int64
}

// DecodeFeed decodes a serialized FeedMessage and appends every arrival at
// f.StopID on a trip of f.RouteID to acc. The feed is never materialised:
// besides acc, memory use is one fixed scratch list per entity.
func DecodeFeed(buf []byte, f Filter, acc *Accumulator, opts ...DecodeOption) (FeedInfo, error) {
	if acc == nil {
		return FeedInfo{}, fmt.Errorf("%w: nil accumulator", ErrDecode)
	}
	d := &decoder{
		route:      []byte(f.RouteID),
		stop:       []byte(f.StopID),
		acc:        acc,
		yieldEvery: DefaultYieldEvery,
	}
	for _, o := range opts {
		o(d)
	}
	droppedBefore := acc.Dropped()
	err := d.feed(buf)
	d.info.Dropped = acc.Dropped() - droppedBefore
	return d.info, err
}

func (d *decoder) fail(level string, off int, cause error) error {
	return fmt.Errorf("%w: %s at byte %d: %v", ErrDecode, level, off, cause)
}

// walk iterates the fields of one message occupying b, which starts at
// absolute offset base. Unknown and group fields are skipped.
func (d *decoder) walk(level string, b []byte, base int, fn func(field) error) error {
	for pos := 0; pos < len(b); {
		num, typ, n := protowire.ConsumeTag(b[pos:])
		if n < 0 {
			return d.fail(level, base+pos, protowire.ParseError(n))
		}
		pos += n
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[pos:])
			if m < 0 {
				return d.fail(level, base+pos, protowire.ParseError(m))
			}
			f.bytes, f.off = v, base+pos+m-len(v)
			pos += m
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b[pos:])
			if m < 0 {
				return d.fail(level, base+pos, protowire.ParseError(m))
			}
			f.u = v
			pos += m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b[pos:])
			if m < 0 {
				return d.fail(level, base+pos, protowire.ParseError(m))
			}
			pos += m
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) tick() {
	d.calls++
	if d.yield != nil && d.calls%d.yieldEvery == 0 {
		d.yield()
	}
}

func missing(name string) error {
	return fmt.Errorf("missing required field %s", name)
}

func (d *decoder) feed(b []byte) error {
	hasHeader := false
	err := d.walk("feed", b, 0, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case fieldFeedHeader:
			hasHeader = true
			return d.header(f.bytes, f.off)
		case fieldFeedEntity:
			return d.entity(f.bytes, f.off)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasHeader {
		return d.fail("feed", 0, missing("header"))
	}
	return nil
}

func (d *decoder) header(b []byte, base int) error {
	hasVersion := d.info.Version != ""
	err := d.walk("header", b, base, func(f field) error {
		switch {
		case f.num == fieldHeaderVersion && f.typ == protowire.BytesType:
			d.info.Version = string(f.bytes)
			hasVersion = true
		case f.num == fieldHeaderTimestamp && f.typ == protowire.VarintType:
			d.info.Timestamp = int64(f.u)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasVersion {
		return d.fail("header", base, missing("gtfs_realtime_version"))
	}
	return nil
}

// entity decodes one FeedEntity and, once all of it has been read, decides
// whether its buffered stop times belong to the target route
func (d *decoder) entity(b []byte, base int) error {
	var st entityState
	err := d.walk("entity", b, base, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case fieldEntityID:
			st.hasID = true
		case fieldEntityTripUpdate:
			st.hasTripUpdate = true
			return d.tripUpdate(f.bytes, f.off, &st)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !st.hasID {
		return d.fail("entity", base, missing("id"))
	}
	if st.hasTripUpdate && !st.hasTrip {
		return d.fail("trip_update", base, missing("trip"))
	}

	d.info.Entities++
	if st.hasTripUpdate {
		d.info.TripUpdates++
	}
	if st.hasRoute && bytes.Equal(st.routeID, d.route) {
		id := boundedID(st.tripID)
		for _, t := range st.times.times[:st.times.n] {
			d.acc.Add(t, id)
		}
		d.info.ScratchDropped += st.times.dropped
	}
	d.tick()
	return nil
}

func (d *decoder) tripUpdate(b []byte, base int, st *entityState) error {
	return d.walk("trip_update", b, base, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case fieldTripUpdateTrip:
			st.hasTrip = true
			return d.trip(f.bytes, f.off, st)
		case fieldTripUpdateStopTimeUpdate:
			return d.stopTimeUpdate(f.bytes, f.off, st)
		}
		return nil
	})
}

func (d *decoder) trip(b []byte, base int, st *entityState) error {
	return d.walk("trip", b, base, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case fieldTripTripID:
			st.tripID = f.bytes
		case fieldTripRouteID:
			st.routeID = f.bytes
			st.hasRoute = true
		}
		return nil
	})
}

// stopTimeUpdate decodes one StopTimeUpdate and buffers its best time when
// the stop matches. An arrival carrying a time is used even when that time
// is zero, which drops the update; departure only counts without one.
func (d *decoder) stopTimeUpdate(b []byte, base int, st *entityState) error {
	var (
		stopID   []byte
		hasStop  bool
		arr, dep stopEvent
	)
	err := d.walk("stop_time_update", b, base, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case fieldStopStopID:
			stopID, hasStop = f.bytes, true
		case fieldStopArrival:
			return d.event(f.bytes, f.off, &arr)
		case fieldStopDeparture:
			return d.event(f.bytes, f.off, &dep)
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.info.StopUpdates++
	if hasStop && bytes.Equal(stopID, d.stop) {
		if best := bestTime(arr, dep); best != 0 {
			st.times.add(best)
		}
	}
	d.tick()
	return nil
}

func (d *decoder) event(b []byte, base int, ev *stopEvent) error {
	return d.walk("stop_time_event", b, base, func(f field) error {
		if f.num == fieldEventTime && f.typ == protowire.VarintType {
			ev.has = true
			ev.time = int64(f.u)
		}
		return nil
	})
}

func bestTime(arr, dep stopEvent) int64 {
	if arr.has {
		return arr.time
	}
	if dep.has {
		return dep.time
	}
	return 0
}
