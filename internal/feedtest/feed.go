// Package feedtest builds GTFS-RT payloads and fake connections for tests.
package feedtest

import (
	"fmt"
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Stop is one StopTimeUpdate; a zero time leaves that event out
type Stop struct {
	StopID    string
	Arrival   int64
	Departure int64
}

// Trip is one TripUpdate entity
type Trip struct {
	EntityID string // defaults to TripID
	TripID   string
	RouteID  string
	NoRoute  bool
	Stops    []Stop
}

// Feed builds a FeedMessage with a valid header. A zero timestamp is omitted.
func Feed(timestamp uint64, trips ...Trip) *gtfsrtpb.FeedMessage {
	hdr := &gtfsrtpb.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")}
	if timestamp != 0 {
		hdr.Timestamp = proto.Uint64(timestamp)
	}
	msg := &gtfsrtpb.FeedMessage{Header: hdr}
	for i, tr := range trips {
		id := tr.EntityID
		if id == "" {
			id = tr.TripID
		}
		if id == "" {
			id = fmt.Sprintf("e%d", i)
		}
		td := &gtfsrtpb.TripDescriptor{}
		if tr.TripID != "" {
			td.TripId = proto.String(tr.TripID)
		}
		if !tr.NoRoute {
			td.RouteId = proto.String(tr.RouteID)
		}
		tu := &gtfsrtpb.TripUpdate{Trip: td}
		for _, s := range tr.Stops {
			stu := &gtfsrtpb.TripUpdate_StopTimeUpdate{StopId: proto.String(s.StopID)}
			if s.Arrival != 0 {
				stu.Arrival = &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(s.Arrival)}
			}
			if s.Departure != 0 {
				stu.Departure = &gtfsrtpb.TripUpdate_StopTimeEvent{Time: proto.Int64(s.Departure)}
			}
			tu.StopTimeUpdate = append(tu.StopTimeUpdate, stu)
		}
		msg.Entity = append(msg.Entity, &gtfsrtpb.FeedEntity{Id: proto.String(id), TripUpdate: tu})
	}
	return msg
}

// Marshal serializes m, allowing missing required fields so tests can build
// invalid feeds on purpose
func Marshal(t testing.TB, m proto.Message) []byte {
	t.Helper()
	b, err := proto.MarshalOptions{AllowPartial: true, Deterministic: true}.Marshal(m)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	return b
}

// Response wraps body in a minimal 200 response with a Content-Length header
func Response(body []byte) []byte {
	hdr := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: application/x-protobuf\r\nContent-Length: %d\r\nConnection: close\r\n\r\n", len(body))
	return append([]byte(hdr), body...)
}
