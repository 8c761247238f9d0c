package resource

import (
	"fmt"
)

// Registry resolves kinds by route. It is immutable after construction.
type Registry struct {
	kinds   []*Kind
	byRoute map[string]*Kind
}

// NewRegistry validates kinds and indexes them. Routes and tables must be
// unique.
func NewRegistry(kinds ...*Kind) (*Registry, error) {
	r := &Registry{byRoute: make(map[string]*Kind, len(kinds))}
	tables := make(map[string]string, len(kinds))
	for _, k := range kinds {
		if k == nil {
			continue
		}
		if err := k.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byRoute[k.Route]; dup {
			return nil, fmt.Errorf("%w: duplicate route %q", ErrInvalidKind, k.Route)
		}
		if other, dup := tables[k.Table]; dup {
			return nil, fmt.Errorf("%w: table %q used by %s and %s", ErrInvalidKind, k.Table, other, k.Name)
		}
		tables[k.Table] = k.Name
		r.byRoute[k.Route] = k
		r.kinds = append(r.kinds, k)
	}
	return r, nil
}

// Lookup returns the kind served under route.
func (r *Registry) Lookup(route string) (*Kind, bool) {
	k, ok := r.byRoute[route]
	return k, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []*Kind {
	out := make([]*Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}
