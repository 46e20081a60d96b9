package circuit

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark/frontend"
)

// TxLayout locates command structures inside the transaction bytes. Each
// slice has one entry per action slot up to PolicyBounds.MaxActions;
// slots past the actual command count carry zeros. The layout is part of
// the circuit shape and must match between compilation and proving.
type TxLayout struct {
	CommandTagOffsets       []int
	MoveCallPkgOffsets      []int
	MoveCallModuleOffsets   []int
	MoveCallModuleLengths   []int
	MoveCallFunctionOffsets []int
	MoveCallFunctionLengths []int
}

func (l *TxLayout) validate(bounds PolicyBounds, txLen int) error {
	if len(l.CommandTagOffsets) != bounds.MaxActions ||
		len(l.MoveCallPkgOffsets) != bounds.MaxActions ||
		len(l.MoveCallModuleOffsets) != bounds.MaxActions ||
		len(l.MoveCallModuleLengths) != bounds.MaxActions ||
		len(l.MoveCallFunctionOffsets) != bounds.MaxActions ||
		len(l.MoveCallFunctionLengths) != bounds.MaxActions {
		return fmt.Errorf("layout slices must have %d entries", bounds.MaxActions)
	}
	for j := 0; j < bounds.MaxActions; j++ {
		if l.CommandTagOffsets[j] >= txLen {
			return fmt.Errorf("slot %d: command tag offset out of bounds", j)
		}
		if l.MoveCallPkgOffsets[j]+moveCallPackageBytes > txLen {
			return fmt.Errorf("slot %d: package offset out of bounds", j)
		}
		if l.MoveCallModuleLengths[j] > bounds.MaxIDLen || l.MoveCallFunctionLengths[j] > bounds.MaxIDLen {
			return fmt.Errorf("slot %d: identifier exceeds budget %d", j, bounds.MaxIDLen)
		}
		if l.MoveCallModuleOffsets[j]+l.MoveCallModuleLengths[j] > txLen {
			return fmt.Errorf("slot %d: module slice out of bounds", j)
		}
		if l.MoveCallFunctionOffsets[j]+l.MoveCallFunctionLengths[j] > txLen {
			return fmt.Errorf("slot %d: function slice out of bounds", j)
		}
	}
	return nil
}

// TxPolicyCircuit proves that the command stream of a transaction, bound
// to its public digest, is accepted by the automaton committed to by the
// public DFA hash.
type TxPolicyCircuit struct {
	TxDigestLimbs [DigestLimbs]frontend.Variable `gnark:",public"`
	DFAHashLimbs  [DigestLimbs]frontend.Variable `gnark:",public"`

	TxBytes      []frontend.Variable
	ActionCount  frontend.Variable
	PresentFlags []frontend.Variable

	layout    TxLayout
	bounds    PolicyBounds
	automaton *PolicyAutomaton
	digest    Digest256
}

func newTxPolicy(digest Digest256, bounds PolicyBounds, automaton *PolicyAutomaton, layout TxLayout, txLen int) (*TxPolicyCircuit, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := automaton.Validate(bounds); err != nil {
		return nil, err
	}
	if txLen == 0 {
		return nil, fmt.Errorf("transaction bytes required")
	}
	if err := layout.validate(bounds, txLen); err != nil {
		return nil, err
	}
	return &TxPolicyCircuit{
		TxBytes:      make([]frontend.Variable, txLen),
		PresentFlags: make([]frontend.Variable, bounds.MaxActions),
		layout:       layout,
		bounds:       bounds,
		automaton:    automaton,
		digest:       digest,
	}, nil
}

// NewTxPolicyCircuit returns the shape-only circuit for compilation.
func NewTxPolicyCircuit(digest Digest256, bounds PolicyBounds, automaton *PolicyAutomaton, layout TxLayout, txLen int) (*TxPolicyCircuit, error) {
	return newTxPolicy(digest, bounds, automaton, layout, txLen)
}

// NewTxPolicyAssignment builds a full witness assignment for the given
// transaction bytes. Public digests are computed natively.
func NewTxPolicyAssignment(digest Digest256, bounds PolicyBounds, automaton *PolicyAutomaton, layout TxLayout, tx []byte, actionCount int) (*TxPolicyCircuit, error) {
	result, err := newTxPolicy(digest, bounds, automaton, layout, len(tx))
	if err != nil {
		return nil, err
	}
	if actionCount < 0 || actionCount > bounds.MaxActions {
		return nil, fmt.Errorf("action count %d out of range", actionCount)
	}
	result.TxBytes = bytesToVariables(tx)
	result.ActionCount = actionCount
	for j := 0; j < bounds.MaxActions; j++ {
		if j < actionCount {
			result.PresentFlags[j] = 1
		} else {
			result.PresentFlags[j] = 0
		}
	}
	txLimbs := PackDigestLimbs(digest.Sum(tx))
	dfaLimbs := PackDigestLimbs(automaton.Hash(digest))
	for i := 0; i < DigestLimbs; i++ {
		result.TxDigestLimbs[i] = txLimbs[i]
		result.DFAHashLimbs[i] = dfaLimbs[i]
	}
	return result, nil
}

type policyTransitionVar struct {
	target int
	limbs  [DigestLimbs]frontend.Variable
}

func (c *TxPolicyCircuit) Define(api frontend.API) error {
	rangeCheckBytes(api, c.TxBytes)

	txDigest, err := c.digest.Hash(api, c.TxBytes)
	if err != nil {
		return err
	}
	enforceDigestEqLimbs(api, txDigest, c.TxDigestLimbs)

	// the present flags witness the command multiplicity
	assertLessOrEqual(api, c.ActionCount, c.bounds.MaxActions, 32)
	presentSum := frontend.Variable(0)
	for _, flag := range c.PresentFlags {
		api.AssertIsBoolean(flag)
		presentSum = api.Add(presentSum, flag)
	}
	api.AssertIsEqual(presentSum, c.ActionCount)

	actionLimbs, err := c.actionSymbolLimbs(api)
	if err != nil {
		return err
	}

	// commit to the automaton through its canonical serialization
	serialization := bytesToVariables(c.automaton.Serialize())
	dfaDigest, err := c.digest.Hash(api, serialization)
	if err != nil {
		return err
	}
	enforceDigestEqLimbs(api, dfaDigest, c.DFAHashLimbs)

	transitionVars := make([][]policyTransitionVar, len(c.automaton.States))
	for stateIdx, state := range c.automaton.States {
		vars := make([]policyTransitionVar, 0, len(state.Transitions))
		for _, transition := range state.Transitions {
			symbolDigest, err := c.digest.Hash(api, bytesToVariables(transition.Symbol))
			if err != nil {
				return err
			}
			vars = append(vars, policyTransitionVar{
				target: transition.Target,
				limbs:  digestToLimbs(api, symbolDigest),
			})
		}
		transitionVars[stateIdx] = vars
	}

	// run the automaton over the observed action stream
	current := frontend.Variable(c.automaton.StartState)
	for j, limbs := range actionLimbs {
		present := c.PresentFlags[j]
		next := frontend.Variable(0)
		found := frontend.Variable(0)
		for stateIdx := range transitionVars {
			inState := api.IsZero(api.Sub(current, stateIdx))
			for _, transition := range transitionVars[stateIdx] {
				matches := api.And(
					api.IsZero(api.Sub(limbs[0], transition.limbs[0])),
					api.IsZero(api.Sub(limbs[1], transition.limbs[1])),
				)
				active := api.And(api.And(inState, matches), present)
				next = api.Add(next, api.Mul(transition.target, active))
				found = api.Add(found, active)
			}
		}
		// a present action with no matching transition is a policy breach
		api.AssertIsEqual(found, present)
		current = api.Add(next, api.Mul(current, api.Sub(1, present)))
	}

	accept := frontend.Variable(0)
	for stateIdx, state := range c.automaton.States {
		if !state.Accepting {
			continue
		}
		accept = api.Add(accept, api.IsZero(api.Sub(current, stateIdx)))
	}
	api.AssertIsEqual(accept, 1)
	return nil
}

// actionSymbolLimbs materialises one encoded symbol per action slot and
// returns its digest limbs.
func (c *TxPolicyCircuit) actionSymbolLimbs(api frontend.API) ([][DigestLimbs]frontend.Variable, error) {
	constantSymbol := func(tag uint8) ([]frontend.Variable, error) {
		encoded, err := EncodeSymbol(commandLiterals[tag], c.bounds.MaxSymbolBytes)
		if err != nil {
			return nil, err
		}
		return bytesToVariables(encoded), nil
	}

	staticTags := []uint8{
		CommandTransferObjects,
		CommandSplitCoin,
		CommandMergeCoins,
		CommandPublish,
		CommandMakeMoveVec,
		CommandUpgrade,
	}
	staticSymbols := make(map[uint8][]frontend.Variable, len(staticTags))
	for _, tag := range staticTags {
		symbol, err := constantSymbol(tag)
		if err != nil {
			return nil, err
		}
		staticSymbols[tag] = symbol
	}

	allTags := append([]uint8{CommandMoveCall}, staticTags...)
	result := make([][DigestLimbs]frontend.Variable, 0, c.bounds.MaxActions)
	for j := 0; j < c.bounds.MaxActions; j++ {
		tag := c.TxBytes[c.layout.CommandTagOffsets[j]]

		tagFlags := make(map[uint8]frontend.Variable, len(allTags))
		recognized := frontend.Variable(0)
		for _, commandTag := range allTags {
			flag := api.IsZero(api.Sub(tag, commandTag))
			tagFlags[commandTag] = flag
			recognized = api.Or(recognized, flag)
		}
		// every present command must map onto the policy alphabet
		api.AssertIsEqual(api.Mul(c.PresentFlags[j], api.Sub(1, recognized)), 0)

		isMoveCall := tagFlags[CommandMoveCall]
		moveCallSymbol, err := c.moveCallSymbol(api, j, isMoveCall)
		if err != nil {
			return nil, err
		}

		symbol := make([]frontend.Variable, c.bounds.SymbolBytes())
		for k := range symbol {
			symbol[k] = frontend.Variable(0)
		}
		for _, commandTag := range staticTags {
			applySymbolSelection(api, symbol, staticSymbols[commandTag], tagFlags[commandTag])
		}
		applySymbolSelection(api, symbol, moveCallSymbol, isMoveCall)

		symbolDigest, err := c.digest.Hash(api, symbol)
		if err != nil {
			return nil, err
		}
		result = append(result, digestToLimbs(api, symbolDigest))
	}
	return result, nil
}

// moveCallSymbol builds the canonical MoveCall symbol for one action
// slot: literal tag, package address, then length-prefixed module and
// function identifiers. Length prefixes read from the transaction bytes
// are bound to the layout under the MoveCall mask.
func (c *TxPolicyCircuit) moveCallSymbol(api frontend.API, j int, mask frontend.Variable) ([]frontend.Variable, error) {
	pkgOffset := c.layout.MoveCallPkgOffsets[j]
	moduleOffset := c.layout.MoveCallModuleOffsets[j]
	moduleLen := c.layout.MoveCallModuleLengths[j]
	functionOffset := c.layout.MoveCallFunctionOffsets[j]
	functionLen := c.layout.MoveCallFunctionLengths[j]

	bindLengthPrefix := func(offset, length int) {
		prefixOffset := offset - symbolLengthPrefix
		if prefixOffset < 0 {
			prefixOffset = 0
		}
		prefix := takeLE4(c.TxBytes, prefixOffset)
		diff := api.Sub(packBytesLE(api, prefix), length)
		api.AssertIsEqual(api.Mul(diff, mask), 0)
	}
	bindLengthPrefix(moduleOffset, moduleLen)
	bindLengthPrefix(functionOffset, functionLen)

	var payload []frontend.Variable
	payload = append(payload, bytesToVariables(commandLiterals[CommandMoveCall])...)
	payload = append(payload, c.TxBytes[pkgOffset:pkgOffset+moveCallPackageBytes]...)
	payload = append(payload, leU32Variables(uint32(moduleLen))...)
	payload = append(payload, c.TxBytes[moduleOffset:moduleOffset+moduleLen]...)
	payload = append(payload, leU32Variables(uint32(functionLen))...)
	payload = append(payload, c.TxBytes[functionOffset:functionOffset+functionLen]...)

	if len(payload) > c.bounds.MaxSymbolBytes {
		return nil, fmt.Errorf("slot %d: move call symbol %d bytes exceeds budget %d", j, len(payload), c.bounds.MaxSymbolBytes)
	}
	symbol := make([]frontend.Variable, 0, c.bounds.SymbolBytes())
	symbol = append(symbol, leU32Variables(uint32(len(payload)))...)
	symbol = append(symbol, payload...)
	for len(symbol) < c.bounds.SymbolBytes() {
		symbol = append(symbol, frontend.Variable(0))
	}
	return symbol, nil
}

func applySymbolSelection(api frontend.API, accumulator, candidate []frontend.Variable, flag frontend.Variable) {
	for k := range accumulator {
		accumulator[k] = api.Select(flag, candidate[k], accumulator[k])
	}
}

func leU32Variables(value uint32) []frontend.Variable {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return bytesToVariables(buf[:])
}

func takeLE4(data []frontend.Variable, offset int) []frontend.Variable {
	result := make([]frontend.Variable, symbolLengthPrefix)
	for i := 0; i < symbolLengthPrefix; i++ {
		if offset+i < len(data) {
			result[i] = data[offset+i]
		} else {
			result[i] = 0
		}
	}
	return result
}
