package circuit

import (
	"encoding/binary"
	"fmt"

	"github.com/viant/nexus/model/kat"
)

// Programmable-transaction command tags, in wire order.
const (
	CommandMoveCall        = 0
	CommandTransferObjects = 1
	CommandSplitCoin       = 2
	CommandMergeCoins      = 3
	CommandPublish         = 4
	CommandMakeMoveVec     = 5
	CommandUpgrade         = 6
)

// symbolLengthPrefix is the little-endian u32 length prefix on every
// encoded symbol.
const symbolLengthPrefix = 4

// moveCallPackageBytes is the fixed package address width in a MoveCall
// symbol payload.
const moveCallPackageBytes = 32

var commandLiterals = map[uint8][]byte{
	CommandMoveCall:        []byte("MoveCall"),
	CommandTransferObjects: []byte("TransferObjects"),
	CommandSplitCoin:       []byte("SplitCoin"),
	CommandMergeCoins:      []byte("MergeCoins"),
	CommandPublish:         []byte("Publish"),
	CommandMakeMoveVec:     []byte("MakeMoveVec"),
	CommandUpgrade:         []byte("Upgrade"),
}

// CommandLiteral returns the symbol payload literal for a command tag.
func CommandLiteral(tag uint8) ([]byte, bool) {
	literal, ok := commandLiterals[tag]
	return literal, ok
}

// PolicyBounds are the compile-time budgets of a transaction policy
// circuit. They shape the constraint system and bound every witness.
type PolicyBounds struct {
	MaxActions             int
	MaxSymbolBytes         int
	MaxStates              int
	MaxTransitionsPerState int
	MaxIDLen               int
}

// Validate rejects non-positive budgets.
func (b PolicyBounds) Validate() error {
	if b.MaxActions <= 0 {
		return fmt.Errorf("max actions must be positive")
	}
	if b.MaxSymbolBytes <= 0 {
		return fmt.Errorf("symbol budget must be positive")
	}
	if b.MaxStates <= 0 || b.MaxTransitionsPerState <= 0 {
		return fmt.Errorf("automaton bounds must be positive")
	}
	return nil
}

// SymbolBytes is the full width of one encoded symbol: length prefix
// plus padded payload.
func (b PolicyBounds) SymbolBytes() int {
	return symbolLengthPrefix + b.MaxSymbolBytes
}

// EncodeSymbol attaches the little-endian length prefix and zero padding
// to a symbol payload.
func EncodeSymbol(payload []byte, maxSymbolBytes int) ([]byte, error) {
	if len(payload) > maxSymbolBytes {
		return nil, fmt.Errorf("symbol payload %d bytes exceeds budget %d", len(payload), maxSymbolBytes)
	}
	symbol := make([]byte, symbolLengthPrefix+maxSymbolBytes)
	binary.LittleEndian.PutUint32(symbol, uint32(len(payload)))
	copy(symbol[symbolLengthPrefix:], payload)
	return symbol, nil
}

// PolicyTransition is one deterministic move keyed by an encoded symbol.
type PolicyTransition struct {
	Target int
	Symbol []byte
}

// PolicyState holds the outgoing moves of one automaton state.
type PolicyState struct {
	Accepting   bool
	Transitions []PolicyTransition
}

// PolicyAutomaton is the DFA a transaction's command stream must
// satisfy. The verifier pins it through the hash of its canonical
// serialization.
type PolicyAutomaton struct {
	StartState int
	States     []PolicyState
}

// FromDFA encodes a compiled KAT automaton into policy form. Action
// symbols become length-prefixed payloads; test labels have no byte
// rendering in a command stream and are rejected.
func FromDFA(dfa *kat.DFA, maxSymbolBytes int) (*PolicyAutomaton, error) {
	result := &PolicyAutomaton{
		StartState: dfa.Start,
		States:     make([]PolicyState, len(dfa.States)),
	}
	for i := range dfa.States {
		state := PolicyState{Accepting: dfa.Accepts[i]}
		for _, transition := range dfa.States[i].Transitions {
			if transition.Label.Kind != kat.LabelAction {
				return nil, fmt.Errorf("state %d: test label %v has no command encoding", i, transition.Label)
			}
			symbol, err := EncodeSymbol([]byte(transition.Label.Symbol), maxSymbolBytes)
			if err != nil {
				return nil, fmt.Errorf("state %d: %w", i, err)
			}
			state.Transitions = append(state.Transitions, PolicyTransition{
				Target: transition.To,
				Symbol: symbol,
			})
		}
		result.States[i] = state
	}
	return result, nil
}

// Validate checks structural soundness against the bounds: state and
// transition budgets, target ranges, and uniform symbol width.
func (a *PolicyAutomaton) Validate(bounds PolicyBounds) error {
	if len(a.States) == 0 {
		return fmt.Errorf("automaton must contain at least one state")
	}
	if len(a.States) > bounds.MaxStates {
		return fmt.Errorf("%d states exceed budget %d", len(a.States), bounds.MaxStates)
	}
	if a.StartState < 0 || a.StartState >= len(a.States) {
		return fmt.Errorf("start state %d out of range", a.StartState)
	}
	for i, state := range a.States {
		if len(state.Transitions) > bounds.MaxTransitionsPerState {
			return fmt.Errorf("state %d: %d transitions exceed budget %d", i, len(state.Transitions), bounds.MaxTransitionsPerState)
		}
		for _, transition := range state.Transitions {
			if transition.Target < 0 || transition.Target >= len(a.States) {
				return fmt.Errorf("state %d: target %d out of range", i, transition.Target)
			}
			if len(transition.Symbol) != bounds.SymbolBytes() {
				return fmt.Errorf("state %d: symbol must be length-prefixed and padded to %d bytes", i, bounds.SymbolBytes())
			}
		}
	}
	return nil
}

// Serialize renders the canonical byte form the circuit hashes:
// le_u32(state count) || le_u32(start) || per state
// (accepting byte || le_u32(transition count) || per transition
// (le_u32(target) || symbol)).
func (a *PolicyAutomaton) Serialize() []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint32(out, uint32(len(a.States)))
	out = binary.LittleEndian.AppendUint32(out, uint32(a.StartState))
	for _, state := range a.States {
		if state.Accepting {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(state.Transitions)))
		for _, transition := range state.Transitions {
			out = binary.LittleEndian.AppendUint32(out, uint32(transition.Target))
			out = append(out, transition.Symbol...)
		}
	}
	return out
}

// Hash returns the automaton commitment under the supplied digest.
func (a *PolicyAutomaton) Hash(digest Digest256) [32]byte {
	return digest.Sum(a.Serialize())
}
