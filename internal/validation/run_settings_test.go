package validation

import (
	"strings"
	"testing"

	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/registry"
	"github.com/mmrzaf/sqribe/internal/runctx"
)

func TestValidateRun_RequiresConnections(t *testing.T) {
	v := NewValidator(registry.DefaultObjectRegistry())

	if err := v.ValidateRun(domain.RunKindGenerate, runctx.Settings{OutputRoot: "out"}); err == nil {
		t.Fatal("expected missing source error")
	}
	if err := v.ValidateRun(domain.RunKindDrop, runctx.Settings{SourceDSN: "x"}); err == nil {
		t.Fatal("expected missing target error")
	}
	if err := v.ValidateRun(domain.RunKindRestore, runctx.Settings{TargetDSN: "x"}); err == nil {
		t.Fatal("expected missing script path error")
	}
	if err := v.ValidateRun("create", runctx.Settings{}); err == nil {
		t.Fatal("expected invalid kind error")
	}
}

func TestValidateRun_Valid(t *testing.T) {
	v := NewValidator(registry.DefaultObjectRegistry())
	s := runctx.Settings{
		ObjectTypes: []string{"fkc", "dt"},
		SourceDSN:   "sqlserver://localhost",
		OutputRoot:  "out",
		Hash:        "0123456789abcdef0123456789abcdef",
	}
	if err := v.ValidateRun(domain.RunKindGenerate, s); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
}

func TestValidateRun_RejectsUnknownTypesAndHash(t *testing.T) {
	v := NewValidator(registry.DefaultObjectRegistry())
	err := v.ValidateObjectTypes([]string{"fkc", "ix"})
	if err == nil || !strings.Contains(err.Error(), "ix") || !strings.Contains(err.Error(), "dt,dc,cc,fkc") {
		t.Fatalf("expected unknown type error listing known tags, got %v", err)
	}
	s := runctx.Settings{SourceDSN: "x", OutputRoot: "out", Hash: "nothex"}
	if err := v.ValidateRun(domain.RunKindGenerate, s); err == nil {
		t.Fatal("expected invalid hash error")
	}
}

func TestValidateRun_RestoreAcceptsForeignHash(t *testing.T) {
	v := NewValidator(registry.DefaultObjectRegistry())
	s := runctx.Settings{TargetDSN: "x", ScriptRoot: "out"}

	for _, hash := range []string{"nothex", "3F2504E0-4F89-11D3-9A0C-0305E82C3301", "0123456789abcdef0123456789abcdef"} {
		s.Hash = hash
		if err := v.ValidateRun(domain.RunKindRestore, s); err != nil {
			t.Fatalf("expected restore hash %q to be accepted, got %v", hash, err)
		}
	}
	for _, hash := range []string{" padded", "two\nlines"} {
		s.Hash = hash
		if err := v.ValidateRun(domain.RunKindRestore, s); err == nil {
			t.Fatalf("expected restore hash %q to be rejected", hash)
		}
	}
	if err := v.ValidateRun(domain.RunKindGenerate, runctx.Settings{SourceDSN: "x", OutputRoot: "out", Hash: "nothex"}); err == nil {
		t.Fatal("expected generate to keep the strict hash format")
	}
}
