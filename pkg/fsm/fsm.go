package fsm

import "context"

// EntityType identifies which state graph and backing collection applies.
type EntityType string

// Role is the class of actor attempting a transition.
type Role string

const (
	RoleSystem           Role = "system"
	RoleContractsTeam    Role = "contracts_team"
	RoleContractsManager Role = "contracts_manager"
)

// Valid reports whether r is one of the built-in roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleContractsTeam, RoleContractsManager:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Edge is a legal outbound transition together with the minimum role needed to traverse it.
type Edge[S ~string] struct {
	To           S    `json:"to" yaml:"to"`
	RequiredRole Role `json:"required_role" yaml:"required_role"`
}

// To is a shorthand edge constructor used when declaring graphs.
func To[S ~string](to S, role Role) Edge[S] {
	return Edge[S]{To: to, RequiredRole: role}
}

// Phase selects whether a hook runs when a state is entered or exited.
type Phase string

const (
	PhaseEnter Phase = "on_enter"
	PhaseExit  Phase = "on_exit"
)

// TransitionContext is handed to every hook of a transition attempt.
type TransitionContext[S ~string] struct {
	From     S
	To       S
	UserID   string
	Role     Role
	EntityID string
}

// Hook runs a side effect when a state is entered or exited. Returning an
// error aborts the transition.
type Hook[S ~string] func(ctx context.Context, tc TransitionContext[S]) error
