// Package intent extracts ranking hints from a natural-language question.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Order is the requested sort direction.
type Order string

// Sort directions.
const (
	Highest Order = "highest"
	Lowest  Order = "lowest"
)

// DefaultTopN is used when the question names no count.
const DefaultTopN = 3

// lowestWords select ascending order when any of them occurs in the query.
var lowestWords = []string{"lowest", "min", "minimum", "least"}

var (
	topFirst  = regexp.MustCompile(`(?i)\b(?:top|first)\s+(\d+)`)
	countNoun = regexp.MustCompile(`(?i)\b(\d+)\s+(?:results|records|candidates|items)\b`)
)

// Intent is the parsed ranking request.
type Intent struct {
	Order    Order
	TopN     int
	Location string // empty when no known location is mentioned
}

// Parse resolves order, count and location from query. Locations are tried in
// the given order; the first one contained in the query wins.
func Parse(query string, locations []string) Intent {
	in := Intent{Order: Highest, TopN: ParseTopN(query)}
	q := strings.ToLower(query)
	for _, w := range lowestWords {
		if strings.Contains(q, w) {
			in.Order = Lowest
			break
		}
	}

	for _, loc := range locations {
		l := strings.ToLower(strings.TrimSpace(loc))
		if l != "" && strings.Contains(q, l) {
			in.Location = loc
			break
		}
	}
	return in
}

// ParseTopN returns the requested result count, DefaultTopN if none is named.
func ParseTopN(query string) int {
	for _, re := range []*regexp.Regexp{topFirst, countNoun} {
		m := re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// overflow; treat as unbounded request
			return int(^uint(0) >> 1)
		}
		return max(n, 1)
	}
	return DefaultTopN
}
