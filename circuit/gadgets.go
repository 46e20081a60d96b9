package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/bits"
)

// DigestLimbBytes is the byte width of one public digest limb. 32-byte
// digests surface as 2 limbs of 16 bytes each.
const DigestLimbBytes = 16

// DigestLimbs is the number of limbs representing a 256-bit digest.
const DigestLimbs = 32 / DigestLimbBytes

// toleranceBitLen bounds the basis-point products; 64-bit gas values
// scaled by at most 20_000 fit well under 2^80.
const toleranceBitLen = 80

// Digest256 is a pluggable 256-bit digest: an in-circuit gadget plus its
// native counterpart used when building witnesses and public inputs.
type Digest256 interface {
	// Name identifies the digest scheme.
	Name() string
	// Hash constrains digest bytes as a function of the input bytes. Each
	// input variable holds one byte.
	Hash(api frontend.API, data []frontend.Variable) ([32]frontend.Variable, error)
	// Sum is the native evaluation of the same function.
	Sum(data []byte) [32]byte
}

// PackDigestLimbs packs a native 32-byte digest into its little-endian
// public limbs.
func PackDigestLimbs(digest [32]byte) [DigestLimbs]*big.Int {
	var limbs [DigestLimbs]*big.Int
	for i := 0; i < DigestLimbs; i++ {
		limb := new(big.Int)
		chunk := digest[i*DigestLimbBytes : (i+1)*DigestLimbBytes]
		for j := len(chunk) - 1; j >= 0; j-- {
			limb.Lsh(limb, 8)
			limb.Or(limb, big.NewInt(int64(chunk[j])))
		}
		limbs[i] = limb
	}
	return limbs
}

// bytesToVariables lifts raw bytes into per-byte witness variables.
func bytesToVariables(data []byte) []frontend.Variable {
	result := make([]frontend.Variable, len(data))
	for i, b := range data {
		result[i] = b
	}
	return result
}

// rangeCheckBytes constrains every variable to one byte.
func rangeCheckBytes(api frontend.API, data []frontend.Variable) {
	for _, b := range data {
		bits.ToBinary(api, b, bits.WithNbDigits(8))
	}
}

// packBytesLE folds little-endian byte variables into one field element.
func packBytesLE(api frontend.API, data []frontend.Variable) frontend.Variable {
	acc := frontend.Variable(0)
	coeff := big.NewInt(1)
	for _, b := range data {
		acc = api.Add(acc, api.Mul(b, new(big.Int).Set(coeff)))
		coeff.Lsh(coeff, 8)
	}
	return acc
}

// digestToLimbs packs 32 in-circuit digest bytes into the limb form used
// for public input comparison.
func digestToLimbs(api frontend.API, digest [32]frontend.Variable) [DigestLimbs]frontend.Variable {
	var limbs [DigestLimbs]frontend.Variable
	for i := 0; i < DigestLimbs; i++ {
		limbs[i] = packBytesLE(api, digest[i*DigestLimbBytes:(i+1)*DigestLimbBytes])
	}
	return limbs
}

// enforceDigestEqLimbs constrains 32 digest bytes to equal the public
// limb variables.
func enforceDigestEqLimbs(api frontend.API, digest [32]frontend.Variable, limbs [DigestLimbs]frontend.Variable) {
	packed := digestToLimbs(api, digest)
	for i := 0; i < DigestLimbs; i++ {
		api.AssertIsEqual(packed[i], limbs[i])
	}
}

// assertLessOrEqual enforces a <= b, both treated as bitLen-bit unsigned
// integers, by lexicographic bit comparison.
func assertLessOrEqual(api frontend.API, a, b frontend.Variable, bitLen int) {
	aBits := bits.ToBinary(api, a, bits.WithNbDigits(bitLen))
	bBits := bits.ToBinary(api, b, bits.WithNbDigits(bitLen))
	lt := frontend.Variable(0)
	eq := frontend.Variable(1)
	for i := bitLen - 1; i >= 0; i-- {
		aLessB := api.Mul(api.Sub(1, aBits[i]), bBits[i])
		lt = api.Or(lt, api.And(aLessB, eq))
		eq = api.And(eq, api.Sub(1, api.Xor(aBits[i], bBits[i])))
	}
	api.AssertIsEqual(api.Or(lt, eq), 1)
}

// bindU64At constrains a 64-bit value to equal the 8 little-endian bytes
// of the blob starting at offset.
func bindU64At(api frontend.API, value frontend.Variable, blob []frontend.Variable, offset int) error {
	if offset+8 > len(blob) {
		return fmt.Errorf("u64 offset %d out of bounds for %d byte blob", offset, len(blob))
	}
	bits.ToBinary(api, value, bits.WithNbDigits(64))
	api.AssertIsEqual(value, packBytesLE(api, blob[offset:offset+8]))
	return nil
}

// assertGasWithinTolerance enforces the gas accounting relation:
// rebate <= storage, total = computation + storage - rebate, and the
// symmetric basis-point window
//
//	10_000 * total   <= (10_000 + tolerance) * claimed
//	10_000 * claimed <= (10_000 + tolerance) * total
//
// with no division.
func assertGasWithinTolerance(api frontend.API, computation, storage, rebate, claimed, toleranceBps frontend.Variable) {
	assertLessOrEqual(api, rebate, storage, 64)

	total := api.Sub(api.Add(computation, storage), rebate)
	totalBits := bits.ToBinary(api, total, bits.WithNbDigits(api.Compiler().FieldBitLen()))
	total64 := bits.FromBinary(api, totalBits[:64])

	bits.ToBinary(api, claimed, bits.WithNbDigits(64))
	window := api.Add(10_000, toleranceBps)
	assertLessOrEqual(api, api.Mul(total64, 10_000), api.Mul(claimed, window), toleranceBitLen)
	assertLessOrEqual(api, api.Mul(claimed, 10_000), api.Mul(total64, window), toleranceBitLen)
}
