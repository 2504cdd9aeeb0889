package utils

import (
	"fmt"
	"time"
)

// Iso8601FromUnixSeconds converts Unix timestamp to ISO8601 format
func Iso8601FromUnixSeconds(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// Iso8601DateFromUnixSeconds returns just the date portion in YYYY-MM-DD format
func Iso8601DateFromUnixSeconds(sec int64) string {
	return time.Unix(sec, 0).UTC().Format("2006-01-02")
}

// MinutesSecondsUntil splits the time from now to epoch into whole minutes
// and remaining seconds, truncating toward zero
func MinutesSecondsUntil(epoch, now int64) (int64, int64) {
	d := epoch - now
	return d / 60, d % 60
}

// FormatCountdown renders minutes and seconds as "m:ss"
func FormatCountdown(mins, secs int64) string {
	if secs < 0 {
		secs = -secs
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// FeedAge returns how old a feed header timestamp is at now; zero when unknown
func FeedAge(feedTimestamp int64, now time.Time) time.Duration {
	if feedTimestamp <= 0 {
		return 0
	}
	return now.Sub(time.Unix(feedTimestamp, 0))
}
