package gtfsrt

import (
	"fmt"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// ReferenceDecode unmarshals the whole FeedMessage with the generated
// bindings and applies the same filter and capacity rules as DecodeFeed.
// It allocates the full message tree and exists to cross-check the
// streaming decoder on captured feeds.
func ReferenceDecode(buf []byte, f Filter, capacity int) ([]MatchedArrival, error) {
	var msg gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(buf, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	acc := NewAccumulator(capacity)
	for _, e := range msg.GetEntity() {
		tu := e.GetTripUpdate()
		if tu == nil || tu.GetTrip() == nil || tu.GetTrip().RouteId == nil {
			continue
		}
		if tu.GetTrip().GetRouteId() != f.RouteID {
			continue
		}
		var sc scratch
		for _, stu := range tu.GetStopTimeUpdate() {
			if stu.StopId == nil || stu.GetStopId() != f.StopID {
				continue
			}
			var best int64
			if a := stu.GetArrival(); a != nil && a.Time != nil {
				best = a.GetTime()
			} else if d := stu.GetDeparture(); d != nil && d.Time != nil {
				best = d.GetTime()
			}
			if best != 0 {
				sc.add(best)
			}
		}
		id := boundedID([]byte(tu.GetTrip().GetTripId()))
		for _, t := range sc.times[:sc.n] {
			acc.Add(t, id)
		}
	}
	return acc.Items(), nil
}
