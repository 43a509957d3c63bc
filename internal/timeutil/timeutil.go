package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatElapsed renders a duration as HH:MM:SS, the form used in progress
// labels.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// ParseDuration accepts time.ParseDuration syntax plus a day ("d") or week
// ("w") suffix.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration string")
	}
	if dur, err := time.ParseDuration(s); err == nil {
		return dur, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	num, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number: %s", s[:len(s)-1])
	}
	switch s[len(s)-1:] {
	case "d":
		return time.Duration(num) * 24 * time.Hour, nil
	case "w":
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", s[len(s)-1:])
	}
}

// ParseSince turns a --since value into an absolute lower bound. It accepts
// RFC3339 timestamps, dates (2006-01-02) and look-back durations such as
// "7d" or "-12h".
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	dur, err := ParseDuration(strings.TrimPrefix(s, "-"))
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-dur), nil
}
