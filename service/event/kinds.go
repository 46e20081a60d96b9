package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/viant/nexus/model/types"
	"github.com/viant/toolbox"
	"github.com/viant/x"
)

// Address is a 32-byte on-chain address in its canonical 0x-hex form.
type Address string

// U64 decodes unsigned 64-bit integers that arrive either as JSON numbers
// or as decimal strings, which is how the chain renders u64 values. It
// marshals back to the string form.
type U64 uint64

// MarshalJSON implements json.Marshaler.
func (u U64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *U64) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = json.Number(s)
	} else {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	value, err := strconv.ParseUint(raw.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %q: %w", raw.String(), err)
	}
	*u = U64(value)
	return nil
}

// TypeName identifies an on-chain type by its fully qualified name.
type TypeName struct {
	Name string `json:"name"`
}

// PortsData maps output port names to their data payloads.
type PortsData map[string]*types.NexusData

// SharedObjectRef references a shared on-chain object.
type SharedObjectRef struct {
	ObjectID             Address `json:"object_id"`
	InitialSharedVersion U64     `json:"initial_shared_version"`
	Mutable              bool    `json:"mutable"`
}

// RuntimeVertex and PolicySymbol are chain-side enums carried through
// verbatim; consumers that need their structure decode the raw form.
type (
	RuntimeVertex = json.RawMessage
	PolicySymbol  = json.RawMessage
)

// RequestWalkExecution requests execution of a DAG vertex.
type RequestWalkExecution struct {
	DAG               Address       `json:"dag"`
	Execution         Address       `json:"execution"`
	Invoker           Address       `json:"invoker"`
	WalkIndex         U64           `json:"walk_index"`
	NextVertex        RuntimeVertex `json:"next_vertex"`
	Evaluations       Address       `json:"evaluations"`
	WorksheetFromType TypeName      `json:"worksheet_from_type"`
}

// AnnounceInterfacePackage announces a newly registered agent interface.
type AnnounceInterfacePackage struct {
	SharedObjects []SharedObjectRef `json:"shared_objects"`
}

// ToolRegistered is fired when a new tool is registered.
type ToolRegistered struct {
	Tool Address `json:"tool"`
	FQN  string  `json:"fqn"`
}

// ToolUnregistered is fired when a tool is removed from the registry.
type ToolUnregistered struct {
	Tool Address `json:"tool"`
	FQN  string  `json:"fqn"`
}

// WalkAdvanced reports progress of a single walk through a DAG.
type WalkAdvanced struct {
	DAG                Address       `json:"dag"`
	Execution          Address       `json:"execution"`
	WalkIndex          U64           `json:"walk_index"`
	Vertex             RuntimeVertex `json:"vertex"`
	Variant            TypeName      `json:"variant"`
	VariantPortsToData PortsData     `json:"variant_ports_to_data"`
}

// WalkFailed reports a failed walk together with the failure reason.
type WalkFailed struct {
	DAG       Address       `json:"dag"`
	Execution Address       `json:"execution"`
	WalkIndex U64           `json:"walk_index"`
	Vertex    RuntimeVertex `json:"vertex"`
	Reason    string        `json:"reason"`
}

// EndStateReached reports a walk halting in an end state.
type EndStateReached struct {
	DAG                Address       `json:"dag"`
	Execution          Address       `json:"execution"`
	WalkIndex          U64           `json:"walk_index"`
	Vertex             RuntimeVertex `json:"vertex"`
	Variant            TypeName      `json:"variant"`
	VariantPortsToData PortsData     `json:"variant_ports_to_data"`
}

// ExecutionFinished reports that all walks of an execution have halted.
type ExecutionFinished struct {
	DAG                 Address `json:"dag"`
	Execution           Address `json:"execution"`
	HasAnyWalkFailed    bool    `json:"has_any_walk_failed"`
	HasAnyWalkSucceeded bool    `json:"has_any_walk_succeeded"`
}

// OccurrenceScheduled is the payload of a scheduled occurrence request.
type OccurrenceScheduled struct {
	Task      Address      `json:"task"`
	Generator PolicySymbol `json:"generator"`
}

// RequestScheduledOccurrence wraps a scheduled occurrence with its
// scheduling window.
type RequestScheduledOccurrence struct {
	Request    OccurrenceScheduled `json:"request"`
	Priority   U64                 `json:"priority"`
	RequestMs  U64                 `json:"request_ms"`
	StartMs    U64                 `json:"start_ms"`
	DeadlineMs U64                 `json:"deadline_ms"`
}

// RequestScheduledWalk wraps a walk execution request with its scheduling
// window.
type RequestScheduledWalk struct {
	Request    RequestWalkExecution `json:"request"`
	Priority   U64                  `json:"priority"`
	RequestMs  U64                  `json:"request_ms"`
	StartMs    U64                  `json:"start_ms"`
	DeadlineMs U64                  `json:"deadline_ms"`
}

// MissedOccurrence is emitted when a scheduled occurrence misses its
// deadline and is pruned.
type MissedOccurrence struct {
	Task                  Address      `json:"task"`
	StartTimeMs           U64          `json:"start_time_ms"`
	DeadlineMs            *U64         `json:"deadline_ms"`
	PrunedAt              U64          `json:"pruned_at"`
	PriorityFeePerGasUnit U64          `json:"priority_fee_per_gas_unit"`
	Generator             PolicySymbol `json:"generator"`
}

// TaskCreated is emitted after a scheduler task object is created.
type TaskCreated struct {
	Task  Address `json:"task"`
	Owner Address `json:"owner"`
}

// TaskPaused is emitted when scheduling for a task is paused.
type TaskPaused struct {
	Task Address `json:"task"`
}

// TaskResumed is emitted when scheduling for a task is resumed.
type TaskResumed struct {
	Task Address `json:"task"`
}

// TaskCanceled is emitted when scheduling for a task is canceled.
type TaskCanceled struct {
	Task               Address `json:"task"`
	ClearedOccurrences U64     `json:"cleared_occurrences"`
	HadPeriodic        bool    `json:"had_periodic"`
}

// OccurrenceConsumed is emitted whenever a pending occurrence is consumed
// for execution.
type OccurrenceConsumed struct {
	Task                  Address      `json:"task"`
	StartTimeMs           U64          `json:"start_time_ms"`
	DeadlineMs            *U64         `json:"deadline_ms"`
	PriorityFeePerGasUnit U64          `json:"priority_fee_per_gas_unit"`
	Generator             PolicySymbol `json:"generator"`
	ExecutedAt            U64          `json:"executed_at"`
}

// PeriodicScheduleConfigured is emitted whenever the periodic schedule is
// configured or cleared.
type PeriodicScheduleConfigured struct {
	Task                  Address `json:"task"`
	PeriodMs              *U64    `json:"period_ms"`
	DeadlineOffsetMs      *U64    `json:"deadline_offset_ms"`
	MaxIterations         *U64    `json:"max_iterations"`
	Generated             *U64    `json:"generated"`
	PriorityFeePerGasUnit *U64    `json:"priority_fee_per_gas_unit"`
	LastGeneratedStartMs  *U64    `json:"last_generated_start_ms"`
}

// FoundingLeaderCapCreated is emitted when a founding leader capability is
// created.
type FoundingLeaderCapCreated struct {
	LeaderCap Address `json:"leader_cap"`
	Network   Address `json:"network"`
}

// GasSettlementUpdate reports whether a tool invocation was paid for by
// the caller. Execution and vertex together identify the invocation.
type GasSettlementUpdate struct {
	Execution  Address       `json:"execution"`
	ToolFQN    string        `json:"tool_fqn"`
	Vertex     RuntimeVertex `json:"vertex"`
	WasSettled bool          `json:"was_settled"`
}

// PreKeyVaultCreated is emitted on initial network setup.
type PreKeyVaultCreated struct {
	Vault     Address `json:"vault"`
	CryptoCap Address `json:"crypto_cap"`
}

// PreKeyRequested is emitted when a user requests a pre key.
type PreKeyRequested struct {
	RequestedBy Address `json:"requested_by"`
}

// PreKeyFulfilled carries the pre key bytes fulfilled by the leader.
type PreKeyFulfilled struct {
	RequestedBy Address `json:"requested_by"`
	PreKeyBytes []byte  `json:"pre_key_bytes"`
}

// PreKeyAssociated is emitted when a pre key is associated with a user.
type PreKeyAssociated struct {
	ClaimedBy      Address `json:"claimed_by"`
	PreKey         []byte  `json:"pre_key"`
	InitialMessage []byte  `json:"initial_message"`
}

// DAGCreated is emitted when a new DAG object is created.
type DAGCreated struct {
	DAG Address `json:"dag"`
}

// ToolRegistryCreated is emitted when a new tool registry is created.
type ToolRegistryCreated struct {
	Registry    Address `json:"registry"`
	SlashingCap Address `json:"slashing_cap"`
}

// Event is a parsed on-chain event: its transaction digest and sequence,
// the generic type arguments of the wrapped event type, the event kind
// name and the decoded payload.
type Event struct {
	TxDigest string
	Sequence uint64
	Generics []string
	Kind     string
	Data     interface{}
}

// DataInto converts the decoded payload into the supplied target, which
// may be a struct pointer or a map.
func (e *Event) DataInto(target interface{}) error {
	return toolbox.DefaultConverter.AssignConverted(target, e.Data)
}

// Kinds registers the known event payload types by their on-chain names.
type Kinds struct {
	registry *x.Registry
}

// Register adds a payload type under the given on-chain event name.
func (k *Kinds) Register(name string, prototype interface{}) {
	k.registry.Register(x.NewType(reflect.TypeOf(prototype), x.WithName(name)))
}

// New returns a pointer to a zero payload value for the given event name.
func (k *Kinds) New(name string) (interface{}, error) {
	registered := k.registry.Lookup(name)
	if registered == nil {
		return nil, fmt.Errorf("unknown event kind: %s", name)
	}
	return reflect.New(registered.Type).Interface(), nil
}

// NewKinds builds the registry with the full event catalogue.
func NewKinds() *Kinds {
	kinds := &Kinds{registry: x.NewRegistry()}
	for name, prototype := range map[string]interface{}{
		"RequestScheduledOccurrenceEvent": RequestScheduledOccurrence{},
		"RequestScheduledWalkEvent":       RequestScheduledWalk{},
		"OccurrenceScheduledEvent":        OccurrenceScheduled{},
		"RequestWalkExecutionEvent":       RequestWalkExecution{},
		"AnnounceInterfacePackageEvent":   AnnounceInterfacePackage{},
		"ToolRegisteredEvent":             ToolRegistered{},
		"ToolUnregisteredEvent":           ToolUnregistered{},
		"WalkAdvancedEvent":               WalkAdvanced{},
		"WalkFailedEvent":                 WalkFailed{},
		"EndStateReachedEvent":            EndStateReached{},
		"ExecutionFinishedEvent":          ExecutionFinished{},
		"MissedOccurrenceEvent":           MissedOccurrence{},
		"TaskCreatedEvent":                TaskCreated{},
		"TaskPausedEvent":                 TaskPaused{},
		"TaskResumedEvent":                TaskResumed{},
		"TaskCanceledEvent":               TaskCanceled{},
		"OccurrenceConsumedEvent":         OccurrenceConsumed{},
		"PeriodicScheduleConfiguredEvent": PeriodicScheduleConfigured{},
		"FoundingLeaderCapCreatedEvent":   FoundingLeaderCapCreated{},
		"GasSettlementUpdateEvent":        GasSettlementUpdate{},
		"PreKeyVaultCreatedEvent":         PreKeyVaultCreated{},
		"PreKeyRequestedEvent":            PreKeyRequested{},
		"PreKeyFulfilledEvent":            PreKeyFulfilled{},
		"PreKeyAssociatedEvent":           PreKeyAssociated{},
		"DAGCreatedEvent":                 DAGCreated{},
		"ToolRegistryCreatedEvent":        ToolRegistryCreated{},
	} {
		kinds.Register(name, prototype)
	}
	return kinds
}
