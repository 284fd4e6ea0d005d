package indexers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// Constructor builds an adapter from a source definition.
type Constructor func(src domain.Source) (Adapter, error)

// Factory maps implementation names to adapter constructors.
// It provides thread-safe registration and lookup.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		ctors: make(map[string]Constructor),
	}
}

// Register adds a constructor for an implementation name.
// If one is already registered under the same name, it is replaced.
func (f *Factory) Register(implementation string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[implementation] = ctor
}

// New builds the adapter for src.
// Returns a domain.NotFoundError if no constructor matches src.Implementation.
func (f *Factory) New(src domain.Source) (Adapter, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[src.Implementation]
	f.mu.RUnlock()

	if !ok {
		return nil, domain.NewNotFoundError("adapter", src.Implementation)
	}

	adapter, err := ctor(src)
	if err != nil {
		return nil, fmt.Errorf("building %s adapter for source %d: %w", src.Implementation, src.ID, err)
	}
	return adapter, nil
}

// Implementations returns the registered implementation names, sorted.
func (f *Factory) Implementations() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.ctors))
	for name := range f.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
