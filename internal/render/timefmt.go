package render

import (
	"fmt"
	"math"
)

// MaxSeconds caps every rendered time value at ten hours.
const MaxSeconds = 10 * 3600.0

func clamp(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	return math.Min(seconds, MaxSeconds)
}

// FormatDuration renders a length as "H小时M分钟S秒", or "M分钟S秒" under an
// hour. Components are truncated.
func FormatDuration(seconds float64) string {
	seconds = clamp(seconds)
	hours := int(seconds / 3600)
	minutes := int(math.Mod(seconds, 3600) / 60)
	secs := int(math.Mod(seconds, 60))
	if hours > 0 {
		return fmt.Sprintf("%d小时%d分钟%d秒", hours, minutes, secs)
	}
	return fmt.Sprintf("%d分钟%d秒", minutes, secs)
}

// FormatSpan renders both ends of a segment. When either end reaches an hour
// both use HH:MM:SS; otherwise both use MM:SS with unwrapped minutes.
func FormatSpan(start, end float64) (string, string) {
	start, end = clamp(start), clamp(end)
	if start >= 3600 || end >= 3600 {
		return clock(start), clock(end)
	}
	return minutesSeconds(start), minutesSeconds(end)
}

func clock(seconds float64) string {
	return fmt.Sprintf("%02d:%02d:%02d",
		int(seconds/3600),
		int(math.Mod(seconds, 3600)/60),
		int(math.Mod(seconds, 60)),
	)
}

func minutesSeconds(seconds float64) string {
	return fmt.Sprintf("%02d:%02d", int(seconds/60), int(math.Mod(seconds, 60)))
}
