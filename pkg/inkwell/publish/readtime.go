package publish

import (
	"math"
	"strings"
)

// WordsPerMinute is the reading speed used for read time estimates.
const WordsPerMinute = 200

// ReadTime estimates minutes to read content, rounding half to even, never
// less than one.
func ReadTime(content string) uint {
	words := len(strings.Fields(content))
	minutes := math.RoundToEven(float64(words) / WordsPerMinute)
	if minutes < 1 {
		return 1
	}
	return uint(minutes)
}
