package util

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration, examples: 5m, 1h, 2d, 1d2h30m")

var durationPattern = regexp.MustCompile(`(?i)^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration parses compact durations like 1d2h30m. An empty string or a
// zero total yields def.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidDuration
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, ErrInvalidDuration
		}
		total += time.Duration(n) * unit
	}
	if total <= 0 {
		return def, nil
	}
	return total, nil
}

// HumanDuration renders d as "1d 2h 30m". Seconds only show for durations
// under a minute.
func HumanDuration(d time.Duration) string {
	total := int64(d / time.Second)
	days, r := total/86400, total%86400
	hours, r := r/3600, r%3600
	mins, secs := r/60, r%60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if secs > 0 && len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
