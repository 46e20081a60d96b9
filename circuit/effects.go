package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
)

// EffectsLayout pins the byte offsets the effects circuit binds inside
// the effects bytes: the embedded transaction digest and the three
// little-endian u64 gas fields.
type EffectsLayout struct {
	TxDigestOffset       int
	GasComputationOffset int
	GasStorageOffset     int
	GasRebateOffset      int
}

// EffectsItem is the shorter chain variant: gas fields are bound through
// the effects digest alone, with the transaction digest embedded in the
// effects bytes.
type EffectsItem struct {
	TxDigestLimbs      [DigestLimbs]frontend.Variable `gnark:",public"`
	EffectsDigestLimbs [DigestLimbs]frontend.Variable `gnark:",public"`
	ClaimedTotalGas    frontend.Variable              `gnark:",public"`
	ToleranceBps       frontend.Variable              `gnark:",public"`

	EffectsBytes  []frontend.Variable
	TxDigestBytes [32]frontend.Variable

	GasComputation frontend.Variable
	GasStorage     frontend.Variable
	GasRebate      frontend.Variable

	layout EffectsLayout
}

// BlankEffectsItem returns a shape-only item for circuit compilation.
func BlankEffectsItem(layout EffectsLayout, effectsLen int) EffectsItem {
	return EffectsItem{
		EffectsBytes: make([]frontend.Variable, effectsLen),
		layout:       layout,
	}
}

// NewEffectsItem builds an assignment item from raw chain data.
func NewEffectsItem(digest Digest256, layout EffectsLayout, effects []byte, txDigest [32]byte, computation, storage, rebate, claimedTotal uint64, toleranceBps uint16) EffectsItem {
	item := EffectsItem{
		ClaimedTotalGas: claimedTotal,
		ToleranceBps:    toleranceBps,
		EffectsBytes:    bytesToVariables(effects),
		GasComputation:  computation,
		GasStorage:      storage,
		GasRebate:       rebate,
		layout:          layout,
	}
	for i := 0; i < 32; i++ {
		item.TxDigestBytes[i] = txDigest[i]
	}
	txLimbs := PackDigestLimbs(txDigest)
	effectsLimbs := PackDigestLimbs(digest.Sum(effects))
	for i := 0; i < DigestLimbs; i++ {
		item.TxDigestLimbs[i] = txLimbs[i]
		item.EffectsDigestLimbs[i] = effectsLimbs[i]
	}
	return item
}

// EffectsGasCircuit is the batch circuit over EffectsItem tuples.
type EffectsGasCircuit struct {
	Items []EffectsItem

	digest Digest256
}

// NewEffectsGasCircuit assembles a batch circuit.
func NewEffectsGasCircuit(digest Digest256, items ...EffectsItem) *EffectsGasCircuit {
	return &EffectsGasCircuit{Items: items, digest: digest}
}

func (c *EffectsGasCircuit) Define(api frontend.API) error {
	for i := range c.Items {
		if err := c.defineItem(api, &c.Items[i]); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (c *EffectsGasCircuit) defineItem(api frontend.API, item *EffectsItem) error {
	layout := item.layout
	if layout.TxDigestOffset+32 > len(item.EffectsBytes) {
		return fmt.Errorf("tx digest offset out of bounds")
	}

	rangeCheckBytes(api, item.EffectsBytes)
	rangeCheckBytes(api, item.TxDigestBytes[:])

	effectsDigest, err := c.digest.Hash(api, item.EffectsBytes)
	if err != nil {
		return err
	}
	enforceDigestEqLimbs(api, effectsDigest, item.EffectsDigestLimbs)

	// the tx digest witness matches both the embedded bytes and the
	// public limbs
	for j := 0; j < 32; j++ {
		api.AssertIsEqual(item.TxDigestBytes[j], item.EffectsBytes[layout.TxDigestOffset+j])
	}
	enforceDigestEqLimbs(api, item.TxDigestBytes, item.TxDigestLimbs)

	if err := bindU64At(api, item.GasComputation, item.EffectsBytes, layout.GasComputationOffset); err != nil {
		return err
	}
	if err := bindU64At(api, item.GasStorage, item.EffectsBytes, layout.GasStorageOffset); err != nil {
		return err
	}
	if err := bindU64At(api, item.GasRebate, item.EffectsBytes, layout.GasRebateOffset); err != nil {
		return err
	}

	assertGasWithinTolerance(api, item.GasComputation, item.GasStorage, item.GasRebate, item.ClaimedTotalGas, item.ToleranceBps)
	return nil
}
