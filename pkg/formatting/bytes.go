// Package formatting provides parsing and human-readable formatting
// utilities shared across the engine: byte sizes for inventory reporting,
// JSON recovery for oracle responses, and text normalization for
// duplicate detection.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
)

const unitScale = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes converts a byte count to a human-readable string using
// base-1024 units. Negative precision values are clamped to zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}
	if precision < 0 {
		precision = 0
	}

	size := float64(n)
	unit := 0
	for size >= unitScale && unit < len(units)-1 {
		size /= unitScale
		unit++
	}

	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[unit]
}

// ParseBytes parses a human-readable byte size such as "50MB" into a byte
// count. Units run B through PB (base-1024), matched case-insensitively,
// with an optional space before the unit. A bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	cut := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			cut = i
			break
		}
	}

	value, err := strconv.ParseFloat(s[:cut], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	unit := strings.ToUpper(strings.TrimSpace(s[cut:]))
	if unit == "" {
		return int64(value), nil
	}

	scale := 1.0
	for _, u := range units {
		if u == unit {
			return int64(value * scale), nil
		}
		scale *= unitScale
	}
	return 0, fmt.Errorf("unknown byte size unit %q", unit)
}
