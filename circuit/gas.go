package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
)

// CheckpointLayout pins the byte offsets the checkpoint circuit binds:
// where the contents digest sits inside the summary, where the
// transaction and effects digests sit inside the contents, and where the
// three little-endian u64 gas fields sit inside the effects bytes. The
// layout is part of the circuit shape and must match between compilation
// and proving.
type CheckpointLayout struct {
	ContentDigestOffsetInSummary  int
	TxDigestOffsetInContents      int
	EffectsDigestOffsetInContents int
	GasComputationOffset          int
	GasStorageOffset              int
	GasRebateOffset               int
}

// CheckpointItem is one (checkpoint, transaction) tuple: public digest
// limbs and claimed gas, private byte blobs and gas fields.
type CheckpointItem struct {
	CheckpointDigestLimbs [DigestLimbs]frontend.Variable `gnark:",public"`
	TxDigestLimbs         [DigestLimbs]frontend.Variable `gnark:",public"`
	ClaimedTotalGas       frontend.Variable              `gnark:",public"`
	ToleranceBps          frontend.Variable              `gnark:",public"`

	SummaryBytes  []frontend.Variable
	ContentsBytes []frontend.Variable
	EffectsBytes  []frontend.Variable

	GasComputation frontend.Variable
	GasStorage     frontend.Variable
	GasRebate      frontend.Variable

	layout CheckpointLayout
}

// BlankCheckpointItem returns a shape-only item for circuit compilation.
func BlankCheckpointItem(layout CheckpointLayout, summaryLen, contentsLen, effectsLen int) CheckpointItem {
	return CheckpointItem{
		SummaryBytes:  make([]frontend.Variable, summaryLen),
		ContentsBytes: make([]frontend.Variable, contentsLen),
		EffectsBytes:  make([]frontend.Variable, effectsLen),
		layout:        layout,
	}
}

// NewCheckpointItem builds an assignment item from raw chain data. The
// public digest limbs are computed with the supplied digest; blob
// contents are not validated here, the circuit enforces them.
func NewCheckpointItem(digest Digest256, layout CheckpointLayout, summary, contents, effects []byte, computation, storage, rebate, claimedTotal uint64, toleranceBps uint16) CheckpointItem {
	item := CheckpointItem{
		ClaimedTotalGas: claimedTotal,
		ToleranceBps:    toleranceBps,
		SummaryBytes:    bytesToVariables(summary),
		ContentsBytes:   bytesToVariables(contents),
		EffectsBytes:    bytesToVariables(effects),
		GasComputation:  computation,
		GasStorage:      storage,
		GasRebate:       rebate,
		layout:          layout,
	}
	checkpointLimbs := PackDigestLimbs(digest.Sum(summary))
	var txDigest [32]byte
	copy(txDigest[:], contents[layout.TxDigestOffsetInContents:])
	txLimbs := PackDigestLimbs(txDigest)
	for i := 0; i < DigestLimbs; i++ {
		item.CheckpointDigestLimbs[i] = checkpointLimbs[i]
		item.TxDigestLimbs[i] = txLimbs[i]
	}
	return item
}

// CheckpointGasCircuit ties a batch of checkpoint digests to their gas
// totals through the digest chain checkpoint -> contents -> effects.
type CheckpointGasCircuit struct {
	Items []CheckpointItem

	digest Digest256
}

// NewCheckpointGasCircuit assembles a batch circuit. The same
// constructor serves compilation (blank items) and proving (assignment
// items).
func NewCheckpointGasCircuit(digest Digest256, items ...CheckpointItem) *CheckpointGasCircuit {
	return &CheckpointGasCircuit{Items: items, digest: digest}
}

func (c *CheckpointGasCircuit) Define(api frontend.API) error {
	for i := range c.Items {
		if err := c.defineItem(api, &c.Items[i]); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (c *CheckpointGasCircuit) defineItem(api frontend.API, item *CheckpointItem) error {
	layout := item.layout
	if layout.ContentDigestOffsetInSummary+32 > len(item.SummaryBytes) {
		return fmt.Errorf("content digest offset out of bounds")
	}
	if layout.TxDigestOffsetInContents+32 > len(item.ContentsBytes) {
		return fmt.Errorf("tx digest offset out of bounds")
	}
	if layout.EffectsDigestOffsetInContents+32 > len(item.ContentsBytes) {
		return fmt.Errorf("effects digest offset out of bounds")
	}
	if layout.EffectsDigestOffsetInContents != layout.TxDigestOffsetInContents+32 {
		return fmt.Errorf("contents layout must store tx and effects digests consecutively")
	}

	rangeCheckBytes(api, item.SummaryBytes)
	rangeCheckBytes(api, item.ContentsBytes)
	rangeCheckBytes(api, item.EffectsBytes)

	// summary hashes to the public checkpoint digest
	summaryDigest, err := c.digest.Hash(api, item.SummaryBytes)
	if err != nil {
		return err
	}
	enforceDigestEqLimbs(api, summaryDigest, item.CheckpointDigestLimbs)

	// summary embeds the contents digest at the declared offset
	contentsDigest, err := c.digest.Hash(api, item.ContentsBytes)
	if err != nil {
		return err
	}
	for j := 0; j < 32; j++ {
		api.AssertIsEqual(item.SummaryBytes[layout.ContentDigestOffsetInSummary+j], contentsDigest[j])
	}

	// contents embed the public transaction digest
	var txDigest [32]frontend.Variable
	copy(txDigest[:], item.ContentsBytes[layout.TxDigestOffsetInContents:layout.TxDigestOffsetInContents+32])
	enforceDigestEqLimbs(api, txDigest, item.TxDigestLimbs)

	// contents embed the effects digest right after the tx digest
	effectsDigest, err := c.digest.Hash(api, item.EffectsBytes)
	if err != nil {
		return err
	}
	for j := 0; j < 32; j++ {
		api.AssertIsEqual(item.ContentsBytes[layout.EffectsDigestOffsetInContents+j], effectsDigest[j])
	}

	// gas fields live at fixed offsets inside the effects bytes
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
