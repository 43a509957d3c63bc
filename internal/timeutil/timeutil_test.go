package timeutil

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                     "00:00:00",
		-time.Second:                          "00:00:00",
		59*time.Second + 900*time.Millisecond: "00:00:59",
		61 * time.Minute:                      "01:01:00",
		26*time.Hour + 5*time.Second:          "26:00:05",
	}
	for in, want := range cases {
		if got := FormatElapsed(in); got != want {
			t.Fatalf("FormatElapsed(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	got, err := ParseSince("7d", now)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("unexpected 7d bound: %v", got)
	}

	got, err = ParseSince("-12h", now)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(now.Add(-12 * time.Hour)) {
		t.Fatalf("unexpected -12h bound: %v", got)
	}

	got, err = ParseSince("2026-05-01", now)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date bound: %v", got)
	}

	got, err = ParseSince("", now)
	if err != nil || !got.IsZero() {
		t.Fatalf("expected zero time for empty input, got %v, %v", got, err)
	}

	if _, err := ParseSince("3y", now); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}
