package circuit

import (
	"encoding/binary"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
)

// testEffectsBytes lays out the three gas fields as little-endian u64s
// at offsets 0, 8 and 16.
func testEffectsBytes(computation, storage, rebate uint64) []byte {
	effects := make([]byte, 24)
	binary.LittleEndian.PutUint64(effects[0:], computation)
	binary.LittleEndian.PutUint64(effects[8:], storage)
	binary.LittleEndian.PutUint64(effects[16:], rebate)
	return effects
}

func TestCheckpointGasCircuit(t *testing.T) {
	digest := NewMiMCDigest()
	effects := testEffectsBytes(500, 450, 100)
	effectsDigest := digest.Sum(effects)
	txDigest := digest.Sum([]byte("transaction"))

	contents := make([]byte, 64)
	copy(contents[0:32], txDigest[:])
	copy(contents[32:64], effectsDigest[:])
	contentsDigest := digest.Sum(contents)

	summary := make([]byte, 32)
	copy(summary, contentsDigest[:])

	layout := CheckpointLayout{
		ContentDigestOffsetInSummary:  0,
		TxDigestOffsetInContents:      0,
		EffectsDigestOffsetInContents: 32,
		GasComputationOffset:          0,
		GasStorageOffset:              8,
		GasRebateOffset:               16,
	}

	// total = 500 + 450 - 100 = 850
	valid := NewCheckpointItem(digest, layout, summary, contents, effects, 500, 450, 100, 850, 100)
	claimedOutOfWindow := NewCheckpointItem(digest, layout, summary, contents, effects, 500, 450, 100, 800, 100)

	tamperedEffects := testEffectsBytes(500, 450, 101)
	tamperedGas := NewCheckpointItem(digest, layout, summary, contents, tamperedEffects, 500, 450, 101, 849, 0)

	circuit := NewCheckpointGasCircuit(digest, BlankCheckpointItem(layout, len(summary), len(contents), len(effects)))
	assert := test.NewAssert(t)
	assert.CheckCircuit(circuit,
		test.WithValidAssignment(NewCheckpointGasCircuit(digest, valid)),
		test.WithInvalidAssignment(NewCheckpointGasCircuit(digest, claimedOutOfWindow)),
		test.WithInvalidAssignment(NewCheckpointGasCircuit(digest, tamperedGas)),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestEffectsGasCircuit(t *testing.T) {
	digest := NewMiMCDigest()
	txDigest := digest.Sum([]byte("transaction"))

	effects := make([]byte, 56)
	copy(effects[0:32], txDigest[:])
	binary.LittleEndian.PutUint64(effects[32:], 500)
	binary.LittleEndian.PutUint64(effects[40:], 450)
	binary.LittleEndian.PutUint64(effects[48:], 100)

	layout := EffectsLayout{
		TxDigestOffset:       0,
		GasComputationOffset: 32,
		GasStorageOffset:     40,
		GasRebateOffset:      48,
	}

	valid := NewEffectsItem(digest, layout, effects, txDigest, 500, 450, 100, 850, 100)
	claimedOutOfWindow := NewEffectsItem(digest, layout, effects, txDigest, 500, 450, 100, 800, 100)
	wrongTxDigest := NewEffectsItem(digest, layout, effects, digest.Sum([]byte("other")), 500, 450, 100, 850, 100)

	circuit := NewEffectsGasCircuit(digest, BlankEffectsItem(layout, len(effects)))
	assert := test.NewAssert(t)
	assert.CheckCircuit(circuit,
		test.WithValidAssignment(NewEffectsGasCircuit(digest, valid)),
		test.WithInvalidAssignment(NewEffectsGasCircuit(digest, claimedOutOfWindow)),
		test.WithInvalidAssignment(NewEffectsGasCircuit(digest, wrongTxDigest)),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestEffectsGasCircuit_RebateBound(t *testing.T) {
	digest := NewMiMCDigest()
	txDigest := digest.Sum([]byte("transaction"))

	// rebate exceeds storage
	effects := make([]byte, 56)
	copy(effects[0:32], txDigest[:])
	binary.LittleEndian.PutUint64(effects[32:], 500)
	binary.LittleEndian.PutUint64(effects[40:], 100)
	binary.LittleEndian.PutUint64(effects[48:], 450)

	layout := EffectsLayout{
		TxDigestOffset:       0,
		GasComputationOffset: 32,
		GasStorageOffset:     40,
		GasRebateOffset:      48,
	}
	excessRebate := NewEffectsItem(digest, layout, effects, txDigest, 500, 100, 450, 150, 0)

	circuit := NewEffectsGasCircuit(digest, BlankEffectsItem(layout, len(effects)))
	assert := test.NewAssert(t)
	assert.CheckCircuit(circuit,
		test.WithInvalidAssignment(NewEffectsGasCircuit(digest, excessRebate)),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}
