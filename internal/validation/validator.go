package validation

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/hashing"
	"github.com/mmrzaf/sqribe/internal/registry"
	"github.com/mmrzaf/sqribe/internal/runctx"
)

type Validator struct {
	objects *registry.ObjectRegistry
}

func NewValidator(objects *registry.ObjectRegistry) *Validator {
	return &Validator{objects: objects}
}

var (
	tagRe      = regexp.MustCompile(`^[a-z][a-z0-9_]{0,15}$`)
	filenameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.sql$`)
)

// IsValidTag accepts short lowercase tags such as "fkc" or "dt".
func IsValidTag(s string) bool {
	return tagRe.MatchString(s)
}

// IsValidMode accepts the three run kinds.
func IsValidMode(s string) bool {
	switch domain.RunKind(s) {
	case domain.RunKindGenerate, domain.RunKindDrop, domain.RunKindRestore:
		return true
	default:
		return false
	}
}

// ValidateObjectTypes checks a filter against the registry. An empty
// filter selects every registered type.
func (v *Validator) ValidateObjectTypes(tags []string) error {
	var unknown []string
	for _, tag := range tags {
		if !IsValidTag(tag) {
			return fmt.Errorf("invalid object type tag: %q", tag)
		}
		if !v.objects.Has(tag) {
			unknown = append(unknown, tag)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown object types %s (known: %s)",
			strings.Join(unknown, ","), strings.Join(v.objects.List(), ","))
	}

	selected := make(map[string]bool, len(tags))
	for _, tag := range tags {
		selected[tag] = true
	}
	for _, ot := range v.objects.Ordered(func(tag string) bool {
		return len(selected) == 0 || selected[tag]
	}) {
		if err := ValidateObjectType(ot); err != nil {
			return err
		}
	}
	return nil
}

// ValidateObjectType checks a descriptor's tag, names and template paths.
func ValidateObjectType(ot domain.ObjectType) error {
	if !IsValidTag(ot.Tag) {
		return fmt.Errorf("invalid object type tag: %q", ot.Tag)
	}
	if strings.TrimSpace(ot.Name) == "" {
		return fmt.Errorf("object type %s: name is required", ot.Tag)
	}
	if ot.Query == "" {
		return fmt.Errorf("object type %s: query is required", ot.Tag)
	}
	if !filenameRe.MatchString(ot.Filename) {
		return fmt.Errorf("object type %s: invalid output filename %q", ot.Tag, ot.Filename)
	}
	if dir, file := path.Split(ot.DropTemplate); dir != "drops/" || !filenameRe.MatchString(file) {
		return fmt.Errorf("object type %s: drop template must be drops/<name>.sql, got %q", ot.Tag, ot.DropTemplate)
	}
	return nil
}

// ValidateRun checks that settings carry what the run kind needs.
func (v *Validator) ValidateRun(kind domain.RunKind, s runctx.Settings) error {
	if !IsValidMode(string(kind)) {
		return fmt.Errorf("invalid run kind: %q", kind)
	}
	if err := v.ValidateObjectTypes(s.ObjectTypes); err != nil {
		return err
	}
	if s.Hash != "" {
		if err := validateHash(kind, s.Hash); err != nil {
			return err
		}
	}

	switch kind {
	case domain.RunKindGenerate:
		if strings.TrimSpace(s.SourceDSN) == "" {
			return errors.New("source connection is required for generate")
		}
		if strings.TrimSpace(s.OutputRoot) == "" {
			return errors.New("output path is required for generate")
		}
	case domain.RunKindDrop:
		if strings.TrimSpace(s.TargetDSN) == "" {
			return errors.New("target connection is required for drop")
		}
	case domain.RunKindRestore:
		if strings.TrimSpace(s.TargetDSN) == "" {
			return errors.New("target connection is required for restore")
		}
		if strings.TrimSpace(s.ScriptRoot) == "" {
			return errors.New("script path is required for restore")
		}
	}
	return nil
}

// validateHash holds generate runs to the stamp format this tool writes.
// A restore hash is only compared against stamps found in scripts, so any
// single-line token is accepted there.
func validateHash(kind domain.RunKind, hash string) error {
	if kind == domain.RunKindRestore {
		if strings.TrimSpace(hash) != hash || strings.ContainsAny(hash, "\r\n") {
			return fmt.Errorf("invalid expected hash: %q", hash)
		}
		return nil
	}
	if !hashing.ValidHash(hash) {
		return fmt.Errorf("invalid run hash: %q", hash)
	}
	return nil
}
