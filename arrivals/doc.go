// Package arrivals turns the matches of one decode pass into the ordered,
// bounded view shown to riders.
package arrivals
