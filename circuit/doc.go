// Package circuit provides Groth16 R1CS circuits binding checkpoint gas
// totals and transaction command policies to public digests.
//
// Digests are exposed to the verifier as two 16-byte little-endian field
// limbs. The in-circuit hash is pluggable through the Digest256 gadget;
// the default is MiMC, which has a cheap arithmetization and a native
// counterpart for witness building.
package circuit
