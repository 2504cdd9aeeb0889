package formatter

import (
	"fmt"
	"strings"

	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/utils"
)

// NoArrivalsText is shown when a snapshot has no matching future arrivals
const NoArrivalsText = "No Trains found"

// BuildText renders a board the way the platform sign shows it: the title
// lines, a blank line, then one numbered "m:ss" countdown per arrival.
func BuildText(title []string, b *arrivals.Board) string {
	var sb strings.Builder
	for _, line := range title {
		sb.WriteString(" ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if len(title) > 0 {
		sb.WriteString("\n")
	}
	if b.Empty() {
		sb.WriteString(NoArrivalsText)
		sb.WriteString("\n")
		return sb.String()
	}
	for i, c := range b.Arrivals {
		fmt.Fprintf(&sb, " %d) %5s\n", i+1, utils.FormatCountdown(c.Minutes, c.Seconds))
	}
	return sb.String()
}

// DefaultTitle builds the heading used when none is configured
func DefaultTitle(route, stop string) []string {
	return []string{route + " @ " + stop, "NEXT TRAINS"}
}
