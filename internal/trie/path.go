// Package trie implements the path-compressed binary Merkle trie backing the
// state commitments. Nodes are content-addressed: children are referenced by
// hash, so identical subtrees are shared across versions instead of copied.
package trie

import (
	"fmt"
	"math/big"

	"github.com/microbecode/madara/internal/felt"
)

// KeyLen is the trie height: keys are field elements truncated to 251 bits.
const KeyLen = 251

// Path is an immutable bit string of up to KeyLen bits, stored left-aligned:
// bit 0 is the most significant bit of bits[0].
type Path struct {
	length uint8
	bits   [32]byte
}

// FeltPath returns the full 251-bit path for a trie key.
func FeltPath(key *felt.Felt) Path {
	raw := key.Bytes()
	p := Path{length: KeyLen}
	// The top 5 bits of the 256-bit encoding are outside the key space.
	for i := uint16(0); i < KeyLen; i++ {
		src := i + 5
		if raw[src/8]&(1<<(7-src%8)) != 0 {
			p.bits[i/8] |= 1 << (7 - i%8)
		}
	}
	return p
}

// Len returns the number of bits in the path.
func (p Path) Len() uint8 {
	return p.length
}

// Bit returns bit i of the path, 0 or 1.
func (p Path) Bit(i uint8) uint8 {
	return (p.bits[i/8] >> (7 - i%8)) & 1
}

// Sub returns the half-open bit range [from, to) as a new path.
func (p Path) Sub(from, to uint8) Path {
	out := Path{length: to - from}
	for i := uint8(0); i < out.length; i++ {
		if p.Bit(from+i) == 1 {
			out.bits[i/8] |= 1 << (7 - i%8)
		}
	}
	return out
}

// AppendBit returns p extended by one bit.
func (p Path) AppendBit(b uint8) Path {
	out := p
	if b != 0 {
		out.bits[p.length/8] |= 1 << (7 - p.length%8)
	}
	out.length++
	return out
}

// Append returns the concatenation p || q.
func (p Path) Append(q Path) Path {
	out := p
	for i := uint8(0); i < q.length; i++ {
		out = out.AppendBit(q.Bit(i))
	}
	return out
}

// CommonPrefixLen returns the length of the longest common prefix of p and q.
func (p Path) CommonPrefixLen(q Path) uint8 {
	limit := p.length
	if q.length < limit {
		limit = q.length
	}
	for i := uint8(0); i < limit; i++ {
		if p.Bit(i) != q.Bit(i) {
			return i
		}
	}
	return limit
}

// Equal reports whether p and q are the same bit string.
func (p Path) Equal(q Path) bool {
	if p.length != q.length {
		return false
	}
	return p.CommonPrefixLen(q) == p.length
}

// Felt returns the path bits interpreted as an unsigned integer, the form the
// edge-node hash consumes.
func (p Path) Felt() felt.Felt {
	n := new(big.Int).SetBytes(p.bits[:])
	n.Rsh(n, uint(256-uint16(p.length)))
	f, err := felt.FromBytes(n.Bytes())
	if err != nil {
		// Unreachable: a 251-bit value always fits the field.
		panic(fmt.Sprintf("trie: path value outside field: %v", err))
	}
	return f
}

func (p Path) String() string {
	out := make([]byte, p.length)
	for i := uint8(0); i < p.length; i++ {
		out[i] = '0' + p.Bit(i)
	}
	return string(out)
}
