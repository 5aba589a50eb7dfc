package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// MicrosPerDay is the length of one wall-clock day in microseconds.
const MicrosPerDay = int64(24 * 60 * 60 * 1_000_000)

// ParseClock converts an HH:MM:SS[.fffffffff] wall-clock reading into
// microseconds since midnight. Sub-microsecond digits are truncated.
func ParseClock(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty clock value")
	}

	hms, frac, _ := strings.Cut(value, ".")
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse clock %q: expected HH:MM:SS", value)
	}

	limits := [3]int64{24, 60, 60}
	scale := [3]int64{3600, 60, 1}
	var seconds int64
	for i, part := range parts {
		if !allDigits(part) {
			return 0, fmt.Errorf("parse clock %q: bad field %q", value, part)
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n >= limits[i] {
			return 0, fmt.Errorf("parse clock %q: bad field %q", value, part)
		}
		seconds += n * scale[i]
	}

	var micros int64
	if frac != "" || strings.HasSuffix(value, ".") {
		if !allDigits(frac) {
			return 0, fmt.Errorf("parse clock %q: bad fraction", value)
		}
		if len(frac) > 6 {
			frac = frac[:6]
		}
		for len(frac) < 6 {
			frac += "0"
		}
		n, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse clock %q: bad fraction", value)
		}
		micros = n
	}

	return seconds*1_000_000 + micros, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
