package player

import (
	"strconv"
	"strings"
)

// parseTimeInfo splits the "1:23 / 4:56" text of the time display into
// progress and duration seconds. Malformed text yields zeros.
func parseTimeInfo(text string) (progress, duration float64) {
	parts := strings.SplitN(text, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	return parseTimestamp(strings.TrimSpace(parts[0])), parseTimestamp(strings.TrimSpace(parts[1]))
}

// parseTimestamp converts "h:mm:ss" or "m:ss" into seconds.
func parseTimestamp(ts string) float64 {
	parts := strings.Split(ts, ":")
	nums := make([]float64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2]
	case 2:
		return nums[0]*60 + nums[1]
	}
	return 0
}
