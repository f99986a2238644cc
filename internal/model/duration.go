package model

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrEmptyDuration    = errors.New("empty duration")
	ErrDurationFormat   = errors.New("invalid duration format")
	ErrDurationOverflow = errors.New("duration overflow")
)

// ParseCueDuration parses the #Duration strings of the config schema, ordered
// day/hour/minute/second segments like 1d12h or 90s.
func ParseCueDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, ErrEmptyDuration
	}

	var total time.Duration
	var next = 0 // index into units, enforces the d,h,m,s order
	units := []struct {
		suffix byte
		unit   time.Duration
	}{
		{'d', 24 * time.Hour},
		{'h', time.Hour},
		{'m', time.Minute},
		{'s', time.Second},
	}

	for start := 0; start < len(s); {
		end := start
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == start || end == len(s) {
			return 0, ErrDurationFormat
		}
		val, err := strconv.ParseInt(s[start:end], 10, 64)
		if err != nil {
			return 0, ErrDurationOverflow
		}

		idx := -1
		for i := next; i < len(units); i++ {
			if units[i].suffix == s[end] {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, ErrDurationFormat
		}
		next = idx + 1

		if val > int64(time.Duration(1<<63-1)/units[idx].unit) {
			return 0, ErrDurationOverflow
		}
		add := time.Duration(val) * units[idx].unit
		if total > time.Duration(1<<63-1)-add {
			return 0, ErrDurationOverflow
		}
		total += add
		start = end + 1
	}
	return total, nil
}
