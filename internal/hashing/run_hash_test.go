package hashing

import (
	"testing"
	"time"
)

func TestHashRun_StableAcrossObjectTypeOrder(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	h1, err := HashRun("r1", "generate", "sqlserver://db", []string{"fkc", "dt"}, at)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashRun("r1", "generate", "sqlserver://db", []string{" DT", "fkc"}, at)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected order-insensitive hash, got %s vs %s", h1, h2)
	}
	if !ValidHash(h1) {
		t.Fatalf("expected %d hex chars, got %q", HashLength, h1)
	}
}

func TestHashRun_IncludesRunIdentity(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	base, err := HashRun("r1", "generate", "src", []string{"fkc"}, at)
	if err != nil {
		t.Fatal(err)
	}
	otherRun, err := HashRun("r2", "generate", "src", []string{"fkc"}, at)
	if err != nil {
		t.Fatal(err)
	}
	otherTime, err := HashRun("r1", "generate", "src", []string{"fkc"}, at.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	otherTypes, err := HashRun("r1", "generate", "src", []string{"fkc", "dt"}, at)
	if err != nil {
		t.Fatal(err)
	}

	if base == otherRun {
		t.Fatal("expected run id to affect hash")
	}
	if base == otherTime {
		t.Fatal("expected start time to affect hash")
	}
	if base == otherTypes {
		t.Fatal("expected object types to affect hash")
	}
}

func TestValidHash(t *testing.T) {
	if ValidHash("") || ValidHash("xyz") || ValidHash("0123456789abcdef0123456789abcdeg") {
		t.Fatal("expected invalid hashes to be rejected")
	}
	if !ValidHash("0123456789abcdef0123456789abcdef") {
		t.Fatal("expected valid hash")
	}
}
