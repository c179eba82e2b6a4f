package lifecycle

import "github.com/dmitrymomot/contractflow/pkg/fsm"

// Entity types with a registered lifecycle.
const (
	PrimeContract fsm.EntityType = "prime_contract"
	Modification  fsm.EntityType = "modification"
	NDA           fsm.EntityType = "nda"
	MOU           fsm.EntityType = "mou"
)

// ActionTransition marks audit events written for transition attempts.
const ActionTransition = "fsm.transition"

// Metadata keys written on transition audit events.
const (
	MetaFromState = "from_state"
	MetaToState   = "to_state"
	MetaRole      = "role"
	MetaErrorCode = "error_code"
	MetaReason    = "reason"
)

func entityKey(entityType fsm.EntityType, entityID string) string {
	return string(entityType) + ":" + entityID
}
