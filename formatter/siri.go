package formatter

import (
	"encoding/json"

	"github.com/theoremus-urban-solutions/transit-types/siri"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/utils"
)

// DefaultCodespace prefixes SIRI references when none is configured
const DefaultCodespace = "UNKNOWN"

// SiriResponse is the top-level SIRI response structure
type SiriResponse struct {
	Siri SiriServiceDelivery `json:"Siri"`
}

// SiriServiceDelivery wraps the ServiceDelivery element
type SiriServiceDelivery struct {
	ServiceDelivery ServiceDelivery `json:"ServiceDelivery"`
}

// ServiceDelivery carries the estimated timetable built from one board
type ServiceDelivery struct {
	ResponseTimestamp          string                            `json:"ResponseTimestamp"`
	ProducerRef                string                            `json:"ProducerRef,omitempty"`
	EstimatedTimetableDelivery []siri.EstimatedTimetableDelivery `json:"EstimatedTimetableDelivery"`
}

// BuildEstimatedTimetable converts a board into a SIRI ET delivery. Each
// record id becomes one journey whose calls at the board's stop keep the
// board's order.
func BuildEstimatedTimetable(b *arrivals.Board, codespace string) siri.EstimatedTimetableDelivery {
	if codespace == "" {
		codespace = DefaultCodespace
	}
	recorded := utils.Iso8601FromUnixSeconds(boardTime(b))

	journeys := make([]siri.EstimatedVehicleJourney, 0, len(b.Arrivals))
	index := make(map[string]int, len(b.Arrivals))
	for _, a := range b.Arrivals {
		i, ok := index[a.RecordID]
		if !ok {
			i = len(journeys)
			index[a.RecordID] = i
			journeys = append(journeys, siri.EstimatedVehicleJourney{
				RecordedAtTime: recorded,
				LineRef:        codespace + ":Line:" + b.Route,
				DirectionRef:   "0",
				FramedVehicleJourneyRef: siri.FramedVehicleJourneyRef{
					DataFrameRef:           utils.Iso8601DateFromUnixSeconds(a.Epoch),
					DatedVehicleJourneyRef: codespace + ":ServiceJourney:" + a.RecordID,
				},
				Monitored:  true,
				DataSource: codespace,
			})
		}
		j := &journeys[i]
		j.EstimatedCalls = append(j.EstimatedCalls, siri.EstimatedCall{
			StopPointRef:        b.Stop,
			Order:               len(j.EstimatedCalls) + 1,
			ExpectedArrivalTime: utils.Iso8601FromUnixSeconds(a.Epoch),
		})
	}

	return siri.EstimatedTimetableDelivery{
		Version:           "2.0",
		ResponseTimestamp: utils.Iso8601FromUnixSeconds(b.GeneratedAt),
		EstimatedJourneyVersionFrame: []siri.EstimatedJourneyVersionFrame{{
			RecordedAtTime:          recorded,
			EstimatedVehicleJourney: journeys,
		}},
	}
}

// BuildSIRI serializes a board as a SIRI JSON response
func BuildSIRI(b *arrivals.Board, codespace string) ([]byte, error) {
	if codespace == "" {
		codespace = DefaultCodespace
	}
	resp := SiriResponse{Siri: SiriServiceDelivery{ServiceDelivery: ServiceDelivery{
		ResponseTimestamp:          utils.Iso8601FromUnixSeconds(b.GeneratedAt),
		ProducerRef:                codespace,
		EstimatedTimetableDelivery: []siri.EstimatedTimetableDelivery{BuildEstimatedTimetable(b, codespace)},
	}}}
	return json.Marshal(resp)
}

// boardTime is the feed timestamp when the header carried one
func boardTime(b *arrivals.Board) int64 {
	if b.FeedTime > 0 {
		return b.FeedTime
	}
	return b.GeneratedAt
}
