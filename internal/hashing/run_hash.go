package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// runHashPayload is the canonical input for a run hash. Map-free so that
// json.Marshal output is stable.
type runHashPayload struct {
	RunID       string   `json:"run_id"`
	Kind        string   `json:"kind"`
	Source      string   `json:"source"`
	ObjectTypes []string `json:"object_types"`
	StartedAt   string   `json:"started_at"`
}

// HashLength is the number of hex characters stamped into script markers.
const HashLength = 32

// HashRun derives the provenance stamp written into every script marker of
// one run. Object type order does not affect the result.
func HashRun(runID, kind, source string, objectTypes []string, startedAt time.Time) (string, error) {
	tags := make([]string, 0, len(objectTypes))
	for _, t := range objectTypes {
		tags = append(tags, strings.ToLower(strings.TrimSpace(t)))
	}
	sort.Strings(tags)

	p := runHashPayload{
		RunID:       runID,
		Kind:        kind,
		Source:      source,
		ObjectTypes: tags,
		StartedAt:   startedAt.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:HashLength], nil
}

// ValidHash reports whether s looks like a hash produced by HashRun.
func ValidHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
