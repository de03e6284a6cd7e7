package slides

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func splitClock(d time.Duration) (h, m, s int64) {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return total / 3600, total % 3600 / 60, total % 60
}

// FormatTimestamp renders d as "m:ss" below one hour and "h:mm:ss" from one
// hour on. Sub-second precision is truncated.
func FormatTimestamp(d time.Duration) string {
	h, m, s := splitClock(d)
	if h == 0 {
		return fmt.Sprintf("%d:%02d", m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// FormatFileTimestamp renders d as "h-mm-ss" for use in file names.
func FormatFileTimestamp(d time.Duration) string {
	h, m, s := splitClock(d)
	return fmt.Sprintf("%d-%02d-%02d", h, m, s)
}

// ParseTimestamp accepts "h:mm:ss", "m:ss" or "ss". File-name forms using
// '-' as the separator are accepted too.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	sep := ":"
	if !strings.Contains(value, ":") && strings.Contains(value, "-") {
		sep = "-"
	}
	parts := strings.Split(value, sep)
	if len(parts) > 3 || value == "" {
		return 0, fmt.Errorf("invalid timestamp format: %q", value)
	}
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp format: %q", value)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}
