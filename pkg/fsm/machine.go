package fsm

import "context"

// Machine is the string-typed view of an Engine, letting one registry hold
// engines over different state types.
type Machine interface {
	EntityType() EntityType
	HasState(state string) bool
	States() []string
	Attempt(ctx context.Context, from, to, userID string, role Role, entityID string) (string, TransitionRecord, error)
	AvailableTransitions(state string, role Role) []Edge[string]
}

// Machine returns the string-typed view of e.
func (e *Engine[S]) Machine() Machine {
	return machine[S]{e: e}
}

type machine[S ~string] struct {
	e *Engine[S]
}

func (m machine[S]) EntityType() EntityType {
	return m.e.EntityType()
}

func (m machine[S]) HasState(state string) bool {
	return m.e.config.Has(S(state))
}

func (m machine[S]) States() []string {
	states := m.e.config.order
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func (m machine[S]) Attempt(ctx context.Context, from, to, userID string, role Role, entityID string) (string, TransitionRecord, error) {
	next, rec, err := m.e.Attempt(ctx, S(from), S(to), userID, role, entityID)
	return string(next), rec, err
}

func (m machine[S]) AvailableTransitions(state string, role Role) []Edge[string] {
	edges := m.e.AvailableTransitions(S(state), role)
	out := make([]Edge[string], len(edges))
	for i, e := range edges {
		out[i] = Edge[string]{To: string(e.To), RequiredRole: e.RequiredRole}
	}
	return out
}
