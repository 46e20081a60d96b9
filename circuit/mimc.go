package circuit

import (
	"math/big"

	frmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/bits"
)

// MiMCDigest is the default Digest256: MiMC over BN254 absorbing one
// byte per field element. The digest is the little-endian byte view of
// the final field element, so in-circuit and native evaluation agree
// byte for byte.
type MiMCDigest struct{}

// NewMiMCDigest returns the MiMC digest gadget.
func NewMiMCDigest() *MiMCDigest {
	return &MiMCDigest{}
}

func (d *MiMCDigest) Name() string {
	return "mimc"
}

func (d *MiMCDigest) Hash(api frontend.API, data []frontend.Variable) ([32]frontend.Variable, error) {
	var digest [32]frontend.Variable
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return digest, err
	}
	hasher.Write(data...)
	sum := hasher.Sum()

	sumBits := bits.ToBinary(api, sum, bits.WithNbDigits(api.Compiler().FieldBitLen()))
	for i := 0; i < 32; i++ {
		start := i * 8
		if start >= len(sumBits) {
			digest[i] = 0
			continue
		}
		end := start + 8
		if end > len(sumBits) {
			end = len(sumBits)
		}
		digest[i] = bits.FromBinary(api, sumBits[start:end])
	}
	return digest, nil
}

func (d *MiMCDigest) Sum(data []byte) [32]byte {
	hasher := frmimc.NewMiMC()
	block := make([]byte, frmimc.BlockSize)
	for _, b := range data {
		for i := range block {
			block[i] = 0
		}
		block[len(block)-1] = b
		_, _ = hasher.Write(block)
	}
	sum := new(big.Int).SetBytes(hasher.Sum(nil))

	var digest [32]byte
	raw := sum.Bytes()
	for i := 0; i < len(raw) && i < 32; i++ {
		digest[i] = raw[len(raw)-1-i]
	}
	return digest
}
