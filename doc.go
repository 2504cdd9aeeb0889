// Package gtfsrtarrivals polls a GTFS-Realtime TripUpdates feed and shows the
// next arrivals for one route at one stop.
//
// Each cycle fetches the feed over a raw HTTP/1.1 connection into a single
// bounded buffer, decodes it with a streaming protobuf walker that keeps only
// matching stop times, and hands the resulting board to one or more sinks.
// A failed cycle leaves the sinks untouched.
package gtfsrtarrivals
