package crawler

import (
	"fmt"
	"slices"
	"strings"
)

// Registry maps category paths to their extraction strategies. It is built
// once at startup and read-only afterwards.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry indexes the given strategies by path. Empty or duplicate paths
// are rejected.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		if s == nil {
			return nil, fmt.Errorf("nil strategy")
		}
		path := s.Path()
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("strategy %T declares an empty path", s)
		}
		if _, dup := r.strategies[path]; dup {
			return nil, fmt.Errorf("duplicate strategy for path %q", path)
		}
		r.strategies[path] = s
	}
	return r, nil
}

// Resolve returns the strategy registered for the category's exact path.
func (r *Registry) Resolve(category Category) (Strategy, error) {
	if r != nil {
		if s, ok := r.strategies[category.Path]; ok {
			return s, nil
		}
	}
	return nil, &UnsupportedCategoryError{Category: category}
}

// Supports reports whether a strategy exists for the category.
func (r *Registry) Supports(category Category) bool {
	_, err := r.Resolve(category)
	return err == nil
}

// Paths lists the supported category paths in sorted order.
func (r *Registry) Paths() []string {
	if r == nil {
		return nil
	}
	paths := make([]string, 0, len(r.strategies))
	for p := range r.strategies {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}
