package circuit

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
)

// testPolicyFixture builds a two-command transaction, TransferObjects
// followed by MoveCall(0xAA.., "mod", "fn"), and an automaton accepting
// exactly that shape: TransferObjects loops on the start state, MoveCall
// moves to the accepting state.
type testPolicyFixture struct {
	digest    *MiMCDigest
	bounds    PolicyBounds
	automaton *PolicyAutomaton
	layout    TxLayout
	tx        []byte
}

func newTestPolicyFixture(t *testing.T) *testPolicyFixture {
	bounds := PolicyBounds{
		MaxActions:             2,
		MaxSymbolBytes:         64,
		MaxStates:              2,
		MaxTransitionsPerState: 2,
		MaxIDLen:               8,
	}

	pkg := bytes.Repeat([]byte{0xAA}, 32)
	var tx []byte
	tx = append(tx, CommandTransferObjects)
	tx = append(tx, CommandMoveCall)
	tx = append(tx, pkg...)                               // offset 2
	tx = binary.LittleEndian.AppendUint32(tx, 3)          // offset 34
	tx = append(tx, []byte("mod")...)                     // offset 38
	tx = binary.LittleEndian.AppendUint32(tx, 2)          // offset 41
	tx = append(tx, []byte("fn")...)                      // offset 45

	layout := TxLayout{
		CommandTagOffsets:       []int{0, 1},
		MoveCallPkgOffsets:      []int{2, 2},
		MoveCallModuleOffsets:   []int{38, 38},
		MoveCallModuleLengths:   []int{3, 3},
		MoveCallFunctionOffsets: []int{45, 45},
		MoveCallFunctionLengths: []int{2, 2},
	}

	transferSymbol, err := EncodeSymbol([]byte("TransferObjects"), bounds.MaxSymbolBytes)
	assert.Nil(t, err)

	var moveCallPayload []byte
	moveCallPayload = append(moveCallPayload, []byte("MoveCall")...)
	moveCallPayload = append(moveCallPayload, pkg...)
	moveCallPayload = binary.LittleEndian.AppendUint32(moveCallPayload, 3)
	moveCallPayload = append(moveCallPayload, []byte("mod")...)
	moveCallPayload = binary.LittleEndian.AppendUint32(moveCallPayload, 2)
	moveCallPayload = append(moveCallPayload, []byte("fn")...)
	moveCallSymbol, err := EncodeSymbol(moveCallPayload, bounds.MaxSymbolBytes)
	assert.Nil(t, err)

	automaton := &PolicyAutomaton{
		StartState: 0,
		States: []PolicyState{
			{Transitions: []PolicyTransition{
				{Target: 0, Symbol: transferSymbol},
				{Target: 1, Symbol: moveCallSymbol},
			}},
			{Accepting: true},
		},
	}
	return &testPolicyFixture{
		digest:    NewMiMCDigest(),
		bounds:    bounds,
		automaton: automaton,
		layout:    layout,
		tx:        tx,
	}
}

func TestTxPolicyCircuit(t *testing.T) {
	fixture := newTestPolicyFixture(t)

	circuit, err := NewTxPolicyCircuit(fixture.digest, fixture.bounds, fixture.automaton, fixture.layout, len(fixture.tx))
	assert.Nil(t, err)

	valid, err := NewTxPolicyAssignment(fixture.digest, fixture.bounds, fixture.automaton, fixture.layout, fixture.tx, 2)
	assert.Nil(t, err)

	// stopping before the MoveCall leaves the run in a non-accepting state
	tooShort, err := NewTxPolicyAssignment(fixture.digest, fixture.bounds, fixture.automaton, fixture.layout, fixture.tx, 1)
	assert.Nil(t, err)

	// a second TransferObjects instead of the MoveCall never reaches the
	// accepting state
	offPolicy := append([]byte(nil), fixture.tx...)
	offPolicy[1] = CommandTransferObjects
	offPolicyAssignment, err := NewTxPolicyAssignment(fixture.digest, fixture.bounds, fixture.automaton, fixture.layout, offPolicy, 2)
	assert.Nil(t, err)

	checker := test.NewAssert(t)
	checker.CheckCircuit(circuit,
		test.WithValidAssignment(valid),
		test.WithInvalidAssignment(tooShort),
		test.WithInvalidAssignment(offPolicyAssignment),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestNewTxPolicyAssignment_Errors(t *testing.T) {
	fixture := newTestPolicyFixture(t)

	_, err := NewTxPolicyAssignment(fixture.digest, fixture.bounds, fixture.automaton, fixture.layout, fixture.tx, 3)
	assert.NotNil(t, err)

	_, err = NewTxPolicyAssignment(fixture.digest, fixture.bounds, fixture.automaton, fixture.layout, nil, 0)
	assert.NotNil(t, err)

	badLayout := fixture.layout
	badLayout.MoveCallModuleLengths = []int{99, 99}
	_, err = NewTxPolicyAssignment(fixture.digest, fixture.bounds, fixture.automaton, badLayout, fixture.tx, 2)
	assert.NotNil(t, err)

	badBounds := fixture.bounds
	badBounds.MaxStates = 1
	_, err = NewTxPolicyCircuit(fixture.digest, badBounds, fixture.automaton, fixture.layout, len(fixture.tx))
	assert.NotNil(t, err)
}
