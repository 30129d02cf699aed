package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(totalMinutes int) string {
	hours, minutes := totalMinutes/60, totalMinutes%60
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// FormatSpan renders a booking as "HH:MM-HH:MM".
func FormatSpan(startMinute, durationMinutes int) string {
	return FormatClock(startMinute) + "-" + FormatClock(startMinute+durationMinutes)
}
