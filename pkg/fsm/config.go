package fsm

import (
	"fmt"
	"slices"
)

// Config is an immutable state graph for one entity type. States referenced
// only as edge targets are declared implicitly and are terminal.
type Config[S ~string] struct {
	entityType EntityType
	states     map[S][]Edge[S]
	order      []S
}

// ConfigOption declares part of a state graph.
type ConfigOption[S ~string] func(*configBuilder[S]) error

type configBuilder[S ~string] struct {
	states   map[S][]Edge[S]
	order    []S
	explicit map[S]struct{}
}

// claim records an explicit From or Terminal declaration of state.
func (b *configBuilder[S]) claim(state S) error {
	if _, ok := b.explicit[state]; ok {
		return fmt.Errorf("%w: state %q declared twice", ErrInvalidConfig, state)
	}
	b.explicit[state] = struct{}{}
	return nil
}

func (b *configBuilder[S]) declare(state S) {
	if _, ok := b.states[state]; ok {
		return
	}
	b.states[state] = nil
	b.order = append(b.order, state)
}

// NewConfig builds and validates a state graph.
func NewConfig[S ~string](entityType EntityType, opts ...ConfigOption[S]) (Config[S], error) {
	if entityType == "" {
		return Config[S]{}, fmt.Errorf("%w: entity type is required", ErrInvalidConfig)
	}

	b := &configBuilder[S]{states: make(map[S][]Edge[S]), explicit: make(map[S]struct{})}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return Config[S]{}, fmt.Errorf("%s: %w", entityType, err)
		}
	}

	return Config[S]{
		entityType: entityType,
		states:     b.states,
		order:      b.order,
	}, nil
}

// MustConfig is like NewConfig but panics on an invalid graph.
func MustConfig[S ~string](entityType EntityType, opts ...ConfigOption[S]) Config[S] {
	cfg, err := NewConfig(entityType, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to build fsm config: %v", err))
	}
	return cfg
}

// From declares the outbound edges of a state. A state is declared once,
// through either From or Terminal.
func From[S ~string](state S, edges ...Edge[S]) ConfigOption[S] {
	return func(b *configBuilder[S]) error {
		if state == "" {
			return fmt.Errorf("%w: state name cannot be empty", ErrInvalidConfig)
		}

		seen := make(map[S]struct{}, len(edges))
		for _, e := range edges {
			if e.To == "" {
				return fmt.Errorf("%w: edge from %q has empty target", ErrInvalidConfig, state)
			}
			if !e.RequiredRole.Valid() {
				return fmt.Errorf("%w: edge %q -> %q requires unknown role %q", ErrInvalidConfig, state, e.To, e.RequiredRole)
			}
			if _, dup := seen[e.To]; dup {
				return fmt.Errorf("%w: duplicate edge %q -> %q", ErrInvalidConfig, state, e.To)
			}
			seen[e.To] = struct{}{}
		}
		if err := b.claim(state); err != nil {
			return err
		}

		b.declare(state)
		b.states[state] = slices.Clone(edges)
		for _, e := range edges {
			b.declare(e.To)
		}
		return nil
	}
}

// Terminal declares states with no outbound edges.
func Terminal[S ~string](states ...S) ConfigOption[S] {
	return func(b *configBuilder[S]) error {
		for _, s := range states {
			if s == "" {
				return fmt.Errorf("%w: state name cannot be empty", ErrInvalidConfig)
			}
			if err := b.claim(s); err != nil {
				return err
			}
			b.declare(s)
		}
		return nil
	}
}

func (c Config[S]) EntityType() EntityType {
	return c.entityType
}

// Has reports whether state is declared in the graph.
func (c Config[S]) Has(state S) bool {
	_, ok := c.states[state]
	return ok
}

// Edges returns a copy of the outbound edges of state.
func (c Config[S]) Edges(state S) []Edge[S] {
	return slices.Clone(c.states[state])
}

// IsTerminal reports whether state has no outbound edges. Undeclared states are terminal.
func (c Config[S]) IsTerminal(state S) bool {
	return len(c.states[state]) == 0
}

// States lists declared states in declaration order.
func (c Config[S]) States() []S {
	return slices.Clone(c.order)
}

func (c Config[S]) edge(from, to S) (Edge[S], bool) {
	for _, e := range c.states[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge[S]{}, false
}
