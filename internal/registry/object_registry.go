package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mmrzaf/sqribe/internal/domain"
)

// ObjectRegistry holds object type descriptors in their declared order.
// Generation and restore walk that order; drops walk it backwards.
type ObjectRegistry struct {
	mu    sync.RWMutex
	order []string
	types map[string]domain.ObjectType
}

func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{
		types: make(map[string]domain.ObjectType),
	}
}

// Register adds or replaces a descriptor. A replaced tag keeps its place.
func (r *ObjectRegistry) Register(t domain.ObjectType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tag := strings.ToLower(t.Tag)
	t.Tag = tag
	if _, ok := r.types[tag]; !ok {
		r.order = append(r.order, tag)
	}
	r.types[tag] = t
}

func (r *ObjectRegistry) Get(tag string) (domain.ObjectType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return domain.ObjectType{}, fmt.Errorf("object type not found: %s", tag)
	}
	return t, nil
}

func (r *ObjectRegistry) Has(tag string) bool {
	_, err := r.Get(tag)
	return err == nil
}

// List returns every tag in declared order.
func (r *ObjectRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Ordered returns the enabled descriptors in declared order.
func (r *ObjectRegistry) Ordered(enabled func(tag string) bool) []domain.ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ObjectType, 0, len(r.order))
	for _, tag := range r.order {
		if enabled == nil || enabled(tag) {
			out = append(out, r.types[tag])
		}
	}
	return out
}

// Reversed returns the enabled descriptors in reverse declared order.
func (r *ObjectRegistry) Reversed(enabled func(tag string) bool) []domain.ObjectType {
	out := r.Ordered(enabled)
	slices.Reverse(out)
	return out
}

func DefaultObjectRegistry() *ObjectRegistry {
	r := NewObjectRegistry()
	r.Register(domain.ObjectType{
		Tag:          "dt",
		Name:         "default type",
		Query:        "select-type-default-create-scripts.sql",
		Column:       "CREATE_SCRIPT",
		Filename:     "default-types.sql",
		DropTemplate: "drops/drop-default-types.sql",
	})
	r.Register(domain.ObjectType{
		Tag:          "dc",
		Name:         "default constraint",
		Query:        "select-default-constraint-create-scripts.sql",
		Column:       "CREATE_SCRIPT",
		Filename:     "table-default-constraints.sql",
		DropTemplate: "drops/drop-default-constraints.sql",
	})
	r.Register(domain.ObjectType{
		Tag:          "cc",
		Name:         "check constraint",
		Query:        "select-check-constraint-create-scripts.sql",
		Column:       "CREATE_SCRIPT",
		Filename:     "table-check-constraints.sql",
		DropTemplate: "drops/drop-check-constraints.sql",
	})
	r.Register(domain.ObjectType{
		Tag:          "fkc",
		Name:         "foreign key constraint",
		Query:        "generate-alter-table-foreign-key-constraints.sql",
		Filename:     "table-foreign-keys.sql",
		DropTemplate: "drops/drop-foreign-keys.sql",
	})
	return r
}
