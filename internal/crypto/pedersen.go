// Package crypto provides the hash primitives used by the state tries.
package crypto

import (
	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"

	"github.com/microbecode/madara/internal/felt"
)

// HashFn is a two-to-one field hash. The trie and the commitment scheme take
// the hash as a parameter so the family can change at a protocol revision
// without touching the tree logic.
type HashFn func(a, b *felt.Felt) felt.Felt

// Pedersen computes the Pedersen hash of two field elements.
func Pedersen(a, b *felt.Felt) felt.Felt {
	return felt.FromElement(pedersenhash.Pedersen(a.Impl(), b.Impl()))
}

// PedersenArray chains Pedersen over the inputs with the standard
// length-suffixed padding: H(...H(H(0, e1), e2)..., len).
func PedersenArray(elems ...*felt.Felt) felt.Felt {
	acc := felt.Zero
	for _, e := range elems {
		acc = Pedersen(&acc, e)
	}
	count := felt.FromUint64(uint64(len(elems)))
	return Pedersen(&acc, &count)
}
