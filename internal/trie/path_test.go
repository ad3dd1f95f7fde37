package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microbecode/madara/internal/felt"
)

func TestFeltPath(t *testing.T) {
	t.Parallel()

	one := felt.FromUint64(1)
	p := FeltPath(&one)
	require.Equal(t, uint8(KeyLen), p.Len())
	assert.Equal(t, uint8(1), p.Bit(KeyLen-1))
	for i := uint8(0); i < KeyLen-1; i++ {
		assert.Equal(t, uint8(0), p.Bit(i))
	}

	v := p.Felt()
	assert.True(t, one.Equal(&v))
}

func TestPathSubAppend(t *testing.T) {
	t.Parallel()

	five := felt.FromUint64(0b101)
	p := FeltPath(&five)

	tail := p.Sub(KeyLen-3, KeyLen)
	assert.Equal(t, "101", tail.String())

	head := p.Sub(0, KeyLen-3)
	rejoined := head.Append(tail)
	assert.True(t, p.Equal(rejoined))

	extended := tail.AppendBit(1)
	assert.Equal(t, "1011", extended.String())
	f := extended.Felt()
	v, ok := f.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(0b1011), v)
}

func TestCommonPrefixLen(t *testing.T) {
	t.Parallel()

	a := Path{}.AppendBit(1).AppendBit(0).AppendBit(1)
	b := Path{}.AppendBit(1).AppendBit(0).AppendBit(0)
	c := Path{}.AppendBit(1).AppendBit(0)

	assert.Equal(t, uint8(2), a.CommonPrefixLen(b))
	assert.Equal(t, uint8(2), a.CommonPrefixLen(c))
	assert.Equal(t, uint8(3), a.CommonPrefixLen(a))
	assert.False(t, a.Equal(c))
}

func TestEmptyPathFelt(t *testing.T) {
	t.Parallel()

	f := Path{}.Felt()
	assert.True(t, f.IsZero())
}
