package validation

import (
	"testing"

	"github.com/mmrzaf/sqribe/internal/domain"
)

func TestIsValidTag(t *testing.T) {
	ok := []string{"dt", "fkc", "cc", "ix2", "user_types"}
	bad := []string{"", "FKC", "1a", "a-b", "a b", "a;b", "waytoolongforatag"}

	for _, s := range ok {
		if !IsValidTag(s) {
			t.Fatalf("expected valid: %q", s)
		}
	}
	for _, s := range bad {
		if IsValidTag(s) {
			t.Fatalf("expected invalid: %q", s)
		}
	}
}

func TestIsValidMode(t *testing.T) {
	if !IsValidMode("generate") || !IsValidMode("drop") || !IsValidMode("restore") {
		t.Fatal("expected valid run kinds")
	}
	if IsValidMode("") || IsValidMode("create") || IsValidMode("foo") {
		t.Fatal("expected invalid run kind")
	}
}

func TestValidateObjectType(t *testing.T) {
	good := domain.ObjectType{
		Tag:          "ix",
		Name:         "index",
		Query:        "select-indexes.sql",
		Filename:     "indexes.sql",
		DropTemplate: "drops/drop-indexes.sql",
	}
	if err := ValidateObjectType(good); err != nil {
		t.Fatalf("expected valid descriptor, got %v", err)
	}

	bad := good
	bad.Filename = "../escape.sql"
	if err := ValidateObjectType(bad); err == nil {
		t.Fatal("expected path traversal in filename to be rejected")
	}
	bad = good
	bad.DropTemplate = "other/drop-indexes.sql"
	if err := ValidateObjectType(bad); err == nil {
		t.Fatal("expected drop template outside drops/ to be rejected")
	}
}
