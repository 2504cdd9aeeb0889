package gtfsrt

import "unicode/utf8"

// MaxRecordIDLen is the longest trip id kept on a MatchedArrival, in bytes
const MaxRecordIDLen = 63

// Filter selects the records kept by DecodeFeed
type Filter struct {
	RouteID string
	StopID  string
}

// MatchedArrival is one predicted arrival at the filtered stop.
// Epoch is never zero.
type MatchedArrival struct {
	Epoch    int64
	RecordID string
}

// FeedInfo summarises one decode pass
type FeedInfo struct {
	Version        string
	Timestamp      int64 // feed header timestamp, 0 when absent
	Entities       int
	TripUpdates    int
	StopUpdates    int
	ScratchDropped int // matching stop times lost to the per-entity scratch cap
	Dropped        int // matches lost to the accumulator cap
}

// boundedID copies at most MaxRecordIDLen bytes of b without leaving a
// partial UTF-8 sequence at the end
func boundedID(b []byte) string {
	if len(b) <= MaxRecordIDLen {
		return string(b)
	}
	b = b[:MaxRecordIDLen]
	i := len(b)
	for i > 0 && i > len(b)-utf8.UTFMax && !utf8.RuneStart(b[i-1]) {
		i--
	}
	if i > 0 && !utf8.FullRune(b[i-1:]) {
		b = b[:i-1]
	}
	return string(b)
}
