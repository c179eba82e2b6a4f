package fsm

import (
	"fmt"
	"slices"
)

// RoleTable maps an actor role to the set of roles it may stand in for.
// The relation is applied as-is: it is neither transitive nor symmetric.
type RoleTable map[Role][]Role

// DefaultRoleTable returns the built-in relation: contracts_manager stands in
// for contracts_team, while system only ever satisfies system.
func DefaultRoleTable() RoleTable {
	return RoleTable{
		RoleSystem:           {RoleSystem},
		RoleContractsTeam:    {RoleContractsTeam},
		RoleContractsManager: {RoleContractsManager, RoleContractsTeam},
	}
}

// Satisfies reports whether actor is authorized for an edge gated by required.
func (t RoleTable) Satisfies(actor, required Role) bool {
	return slices.Contains(t[actor], required)
}

// Known reports whether role appears as an actor in the table.
func (t RoleTable) Known(role Role) bool {
	_, ok := t[role]
	return ok
}

// Validate checks that every role satisfies at least itself and that every
// stand-in refers to a role declared in the table.
func (t RoleTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: role table is empty", ErrInvalidConfig)
	}
	for actor, standsIn := range t {
		if !slices.Contains(standsIn, actor) {
			return fmt.Errorf("%w: role %q must satisfy itself", ErrInvalidConfig, actor)
		}
		for _, r := range standsIn {
			if !t.Known(r) {
				return fmt.Errorf("%w: role %q stands in for undeclared role %q", ErrInvalidConfig, actor, r)
			}
		}
	}
	return nil
}

func (t RoleTable) clone() RoleTable {
	out := make(RoleTable, len(t))
	for k, v := range t {
		out[k] = slices.Clone(v)
	}
	return out
}
