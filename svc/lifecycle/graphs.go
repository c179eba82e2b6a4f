package lifecycle

import "github.com/dmitrymomot/contractflow/pkg/fsm"

const (
	system  = fsm.RoleSystem
	team    = fsm.RoleContractsTeam
	manager = fsm.RoleContractsManager
)

// PrimeContractState is a prime contract lifecycle state.
type PrimeContractState string

const (
	OpportunityIdentified PrimeContractState = "OPPORTUNITY_IDENTIFIED"
	ProposalInProgress    PrimeContractState = "PROPOSAL_IN_PROGRESS"
	ProposalSubmitted     PrimeContractState = "PROPOSAL_SUBMITTED"
	Awarded               PrimeContractState = "AWARDED"
	NotAwarded            PrimeContractState = "NOT_AWARDED"
	Active                PrimeContractState = "ACTIVE"
	OptionPending         PrimeContractState = "OPTION_PENDING"
	StopWork              PrimeContractState = "STOP_WORK"
	CloseoutPending       PrimeContractState = "CLOSEOUT_PENDING"
	Closed                PrimeContractState = "CLOSED"
)

// PrimeContractConfig is the prime contract graph from opportunity to closeout.
func PrimeContractConfig() fsm.Config[PrimeContractState] {
	return fsm.MustConfig(PrimeContract,
		fsm.From(OpportunityIdentified,
			fsm.To(ProposalInProgress, team),
			fsm.To(Closed, manager),
		),
		fsm.From(ProposalInProgress,
			fsm.To(ProposalSubmitted, manager),
			fsm.To(OpportunityIdentified, team),
		),
		fsm.From(ProposalSubmitted,
			fsm.To(Awarded, team),
			fsm.To(NotAwarded, team),
		),
		fsm.From(Awarded, fsm.To(Active, manager)),
		fsm.From(NotAwarded, fsm.To(Closed, team)),
		fsm.From(Active,
			fsm.To(OptionPending, system),
			fsm.To(StopWork, manager),
			fsm.To(CloseoutPending, team),
		),
		fsm.From(OptionPending,
			fsm.To(Active, manager),
			fsm.To(CloseoutPending, system),
		),
		fsm.From(StopWork,
			fsm.To(Active, manager),
			fsm.To(CloseoutPending, manager),
		),
		fsm.From(CloseoutPending, fsm.To(Closed, manager)),
		fsm.Terminal(Closed),
	)
}

// ModificationState is a contract modification lifecycle state.
type ModificationState string

const (
	ModIdentified  ModificationState = "MOD_IDENTIFIED"
	ModAnalysis    ModificationState = "MOD_ANALYSIS"
	ModDrafted     ModificationState = "MOD_DRAFTED"
	ModUnderReview ModificationState = "MOD_UNDER_REVIEW"
	ModApproved    ModificationState = "MOD_APPROVED"
	ModRejected    ModificationState = "MOD_REJECTED"
	ModExecuted    ModificationState = "MOD_EXECUTED"
	ModSynced      ModificationState = "MOD_SYNCED"
)

// ModificationConfig is the modification graph. Review may send a draft back
// for rework any number of times.
func ModificationConfig() fsm.Config[ModificationState] {
	return fsm.MustConfig(Modification,
		fsm.From(ModIdentified, fsm.To(ModAnalysis, team)),
		fsm.From(ModAnalysis,
			fsm.To(ModDrafted, team),
			fsm.To(ModRejected, manager),
		),
		fsm.From(ModDrafted, fsm.To(ModUnderReview, team)),
		fsm.From(ModUnderReview,
			fsm.To(ModDrafted, manager),
			fsm.To(ModApproved, manager),
			fsm.To(ModRejected, manager),
		),
		fsm.From(ModApproved, fsm.To(ModExecuted, team)),
		fsm.From(ModExecuted, fsm.To(ModSynced, system)),
		fsm.Terminal(ModSynced, ModRejected),
	)
}

// NDAState is a non-disclosure agreement lifecycle state.
type NDAState string

const (
	NDARequested        NDAState = "NDA_REQUESTED"
	NDADrafted          NDAState = "NDA_DRAFTED"
	NDAInNegotiation    NDAState = "NDA_IN_NEGOTIATION"
	NDAPendingSignature NDAState = "NDA_PENDING_SIGNATURE"
	NDAActive           NDAState = "NDA_ACTIVE"
	NDAExpired          NDAState = "NDA_EXPIRED"
	NDATerminated       NDAState = "NDA_TERMINATED"
)

// NDAConfig is the NDA graph.
func NDAConfig() fsm.Config[NDAState] {
	return fsm.MustConfig(NDA,
		fsm.From(NDARequested, fsm.To(NDADrafted, team)),
		fsm.From(NDADrafted,
			fsm.To(NDAInNegotiation, team),
			fsm.To(NDAPendingSignature, manager),
		),
		fsm.From(NDAInNegotiation,
			fsm.To(NDADrafted, team),
			fsm.To(NDAPendingSignature, manager),
		),
		fsm.From(NDAPendingSignature, fsm.To(NDAActive, team)),
		fsm.From(NDAActive,
			fsm.To(NDAExpired, system),
			fsm.To(NDATerminated, manager),
		),
		fsm.Terminal(NDAExpired, NDATerminated),
	)
}

// MOUState is a memorandum of understanding lifecycle state.
type MOUState string

const (
	MOUDraft            MOUState = "MOU_DRAFT"
	MOUUnderReview      MOUState = "MOU_UNDER_REVIEW"
	MOUPendingSignature MOUState = "MOU_PENDING_SIGNATURE"
	MOUActive           MOUState = "MOU_ACTIVE"
	MOUExpired          MOUState = "MOU_EXPIRED"
	MOUTerminated       MOUState = "MOU_TERMINATED"
)

// MOUConfig is the MOU graph.
func MOUConfig() fsm.Config[MOUState] {
	return fsm.MustConfig(MOU,
		fsm.From(MOUDraft, fsm.To(MOUUnderReview, team)),
		fsm.From(MOUUnderReview,
			fsm.To(MOUDraft, manager),
			fsm.To(MOUPendingSignature, manager),
		),
		fsm.From(MOUPendingSignature, fsm.To(MOUActive, team)),
		fsm.From(MOUActive,
			fsm.To(MOUExpired, system),
			fsm.To(MOUTerminated, manager),
		),
		fsm.Terminal(MOUExpired, MOUTerminated),
	)
}

// Engines holds one typed engine per entity type so callers can register
// hooks against typed states before handing the engines to a Service.
type Engines struct {
	PrimeContract *fsm.Engine[PrimeContractState]
	Modification  *fsm.Engine[ModificationState]
	NDA           *fsm.Engine[NDAState]
	MOU           *fsm.Engine[MOUState]
}

// NewEngines builds the four engines with shared options.
func NewEngines(opts ...fsm.Option) (*Engines, error) {
	pc, err := fsm.New(PrimeContractConfig(), opts...)
	if err != nil {
		return nil, err
	}
	mod, err := fsm.New(ModificationConfig(), opts...)
	if err != nil {
		return nil, err
	}
	nda, err := fsm.New(NDAConfig(), opts...)
	if err != nil {
		return nil, err
	}
	mou, err := fsm.New(MOUConfig(), opts...)
	if err != nil {
		return nil, err
	}
	return &Engines{PrimeContract: pc, Modification: mod, NDA: nda, MOU: mou}, nil
}

// Machines returns the string-typed views for registration with a Service.
func (e *Engines) Machines() []fsm.Machine {
	return []fsm.Machine{
		e.PrimeContract.Machine(),
		e.Modification.Machine(),
		e.NDA.Machine(),
		e.MOU.Machine(),
	}
}

// InitialState returns the state new entities of entityType start in.
func InitialState(entityType fsm.EntityType) (string, bool) {
	switch entityType {
	case PrimeContract:
		return string(OpportunityIdentified), true
	case Modification:
		return string(ModIdentified), true
	case NDA:
		return string(NDARequested), true
	case MOU:
		return string(MOUDraft), true
	}
	return "", false
}
