package candidate

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber coerces a cell to a float. Empty, non-numeric, NaN and infinite
// cells are reported as not numeric; they are never treated as zero.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
