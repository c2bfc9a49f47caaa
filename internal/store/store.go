// Package store holds the keyed collections the parsers fill and the engine
// reads. Stores are not synchronized: parsing writes them from one goroutine,
// and Freeze marks the point after which they are only read.
package store

import (
	"fmt"

	"github.com/mark3labs/eyriegen/internal/ir"
)

// Store is a keyed collection of resources. Keys are the resources' names.
type Store[T ir.Resource] struct {
	items  map[string]T
	order  []string
	frozen bool
}

// New returns an empty store.
func New[T ir.Resource]() *Store[T] {
	return &Store[T]{items: make(map[string]T)}
}

// Set inserts or overwrites a resource by name. Calling Set on a frozen
// store is a programming error and panics.
func (s *Store[T]) Set(resource T) {
	if s.frozen {
		panic(fmt.Sprintf("store: set %q after freeze", resource.ResourceName()))
	}
	name := resource.ResourceName()
	if _, ok := s.items[name]; !ok {
		s.order = append(s.order, name)
	}
	s.items[name] = resource
}

// Get returns the resource stored under name.
func (s *Store[T]) Get(name string) (T, bool) {
	r, ok := s.items[name]
	return r, ok
}

// Has reports whether a resource is stored under name.
func (s *Store[T]) Has(name string) bool {
	_, ok := s.items[name]
	return ok
}

// List returns a copy of the name -> resource mapping.
func (s *Store[T]) List() map[string]T {
	out := make(map[string]T, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Names returns the stored names in first-insertion order.
func (s *Store[T]) Names() []string {
	return append([]string(nil), s.order...)
}

// Values returns the stored resources in first-insertion order.
func (s *Store[T]) Values() []T {
	out := make([]T, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.items[name])
	}
	return out
}

// Len returns the number of stored resources.
func (s *Store[T]) Len() int { return len(s.items) }

// Freeze makes the store read-only.
func (s *Store[T]) Freeze() { s.frozen = true }

// Frozen reports whether Freeze has been called.
func (s *Store[T]) Frozen() bool { return s.frozen }

// Catalog bundles the three stores of one generation run.
type Catalog struct {
	Models      *Store[ir.Model]
	Services    *Store[ir.Service]
	Controllers *Store[ir.Controller]
}

// NewCatalog returns a catalog with empty stores.
func NewCatalog() *Catalog {
	return &Catalog{
		Models:      New[ir.Model](),
		Services:    New[ir.Service](),
		Controllers: New[ir.Controller](),
	}
}

// Freeze freezes all three stores.
func (c *Catalog) Freeze() {
	c.Models.Freeze()
	c.Services.Freeze()
	c.Controllers.Freeze()
}
