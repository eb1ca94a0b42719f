package sys

import (
	"math"
	"strconv"
)

// formatFloat prints f the way C's "%f" does: six decimals, with nan and
// inf spelled in lower case.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}
