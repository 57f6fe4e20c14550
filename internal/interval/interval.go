// Package interval parses the compact polling interval strings used in repomon
// configuration ("30s", "5m", "1h", "1d").
package interval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidIntervalFormat is matched by every parse failure.
var ErrInvalidIntervalFormat = errors.New("invalid interval format")

// FormatError carries the offending interval string.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid interval format %q: expected <digits><s|m|h|d>", e.Value)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidIntervalFormat
}

var pattern = regexp.MustCompile(`^(\d+)(s|m|h|d)$`)

var unitMillis = map[string]int64{
	"s": 1000,
	"m": 60 * 1000,
	"h": 60 * 60 * 1000,
	"d": 24 * 60 * 60 * 1000,
}

// ParseMillis returns the interval described by s in milliseconds. "0s" is valid.
func ParseMillis(s string) (int64, error) {
	match := pattern.FindStringSubmatch(s)
	if len(match) != 3 {
		return 0, &FormatError{Value: s}
	}
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, &FormatError{Value: s}
	}
	factor := unitMillis[match[2]]
	// Durations are nanosecond int64 values, so the result must survive the conversion.
	if value > math.MaxInt64/factor/int64(time.Millisecond) {
		return 0, &FormatError{Value: s}
	}
	return value * factor, nil
}

// Parse returns the interval described by s as a time.Duration.
func Parse(s string) (time.Duration, error) {
	ms, err := ParseMillis(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := ParseMillis(s)
	return err == nil
}
