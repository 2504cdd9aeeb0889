// Package formatter renders arrival boards for sinks.
//
// This package is organized into:
// - json.go: JSON serialization used by message sinks
// - siri.go: SIRI estimated timetable envelope for SIRI consumers
// - text.go: plain text board mirroring the platform sign layout
package formatter
