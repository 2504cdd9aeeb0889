// Package gtfsrt extracts arrivals for one route and stop from a GTFS-Realtime
// TripUpdates feed without materialising the feed.
//
// DecodeFeed walks the protobuf wire format directly (FeedMessage → FeedEntity
// → TripUpdate → StopTimeUpdate). Stop-level times are collected per entity in
// a fixed scratch list and copied into the caller's Accumulator only once the
// entity's route is known, because route_id may be serialised after the stop
// time updates. Only the fields needed for filtering and time extraction are
// interpreted; everything else is skipped by wire type.
package gtfsrt
