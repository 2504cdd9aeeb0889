package formatter

import (
	"encoding/json"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
)

// BuildJSON serializes a board to JSON
func BuildJSON(b *arrivals.Board) ([]byte, error) {
	return json.Marshal(b)
}
