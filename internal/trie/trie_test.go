package trie

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microbecode/madara/internal/crypto"
	"github.com/microbecode/madara/internal/felt"
)

// mapReader is an in-memory committed node table.
type mapReader struct {
	nodes map[felt.Felt]*Node
}

func newMapReader() *mapReader {
	return &mapReader{nodes: make(map[felt.Felt]*Node)}
}

func (r *mapReader) Node(hash *felt.Felt) (*Node, error) {
	n, ok := r.nodes[*hash]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

func (r *mapReader) absorb(set *NodeSet) {
	for h, n := range set.Nodes {
		r.nodes[h] = n
	}
}

func TestEmptyTrieRootIsZero(t *testing.T) {
	t.Parallel()

	tr := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	root := tr.Root()
	assert.True(t, root.IsZero())
}

func TestSingleLeafRoot(t *testing.T) {
	t.Parallel()

	// One leaf at key 0x1 with value 42: the root is the hash of a single
	// full-height edge, H(42, 1) + 251.
	tr := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	key := felt.FromUint64(1)
	value := felt.FromUint64(42)
	require.NoError(t, tr.Update(&key, &value))

	inner := crypto.Pedersen(&value, &key)
	length := felt.FromUint64(KeyLen)
	want := inner.Add(&length)

	got := tr.Root()
	assert.True(t, want.Equal(&got), "got %s want %s", got, want)
}

func TestGetAfterUpdates(t *testing.T) {
	t.Parallel()

	tr := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	for i := uint64(1); i <= 20; i++ {
		key := felt.FromUint64(i)
		value := felt.FromUint64(i * 100)
		require.NoError(t, tr.Update(&key, &value))
	}

	for i := uint64(1); i <= 20; i++ {
		key := felt.FromUint64(i)
		got, err := tr.Get(&key)
		require.NoError(t, err)
		want := felt.FromUint64(i * 100)
		assert.True(t, want.Equal(&got), "key %d", i)
	}

	absent := felt.FromUint64(999)
	got, err := tr.Get(&absent)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestDeterminismAcrossInsertionOrder(t *testing.T) {
	t.Parallel()

	keys := []uint64{5, 1, 9, 200, 3, 1 << 40, 7}

	forward := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	for _, k := range keys {
		key := felt.FromUint64(k)
		value := felt.FromUint64(k + 1)
		require.NoError(t, forward.Update(&key, &value))
	}

	backward := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	for i := len(keys) - 1; i >= 0; i-- {
		key := felt.FromUint64(keys[i])
		value := felt.FromUint64(keys[i] + 1)
		require.NoError(t, backward.Update(&key, &value))
	}

	f, b := forward.Root(), backward.Root()
	assert.True(t, f.Equal(&b))
}

func TestDeleteRestoresPriorRoot(t *testing.T) {
	t.Parallel()

	tr := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	a := felt.FromUint64(0b01)
	b := felt.FromUint64(0b11)
	va := felt.FromUint64(10)
	vb := felt.FromUint64(20)

	require.NoError(t, tr.Update(&a, &va))
	before := tr.Root()

	require.NoError(t, tr.Update(&b, &vb))
	withBoth := tr.Root()
	assert.False(t, before.Equal(&withBoth))

	require.NoError(t, tr.Update(&b, &felt.Zero))
	after := tr.Root()
	assert.True(t, before.Equal(&after))

	require.NoError(t, tr.Update(&a, &felt.Zero))
	empty := tr.Root()
	assert.True(t, empty.IsZero())
}

func TestCommitThenReopenFromReader(t *testing.T) {
	t.Parallel()

	reader := newMapReader()
	tr := New(reader, felt.Felt{}, crypto.Pedersen)
	for i := uint64(1); i <= 50; i++ {
		key := felt.FromUint64(i)
		value := felt.FromUint64(i)
		require.NoError(t, tr.Update(&key, &value))
	}
	root, set := tr.Commit()
	reader.absorb(set)

	reopened := New(reader, root, crypto.Pedersen)
	key := felt.FromUint64(33)
	got, err := reopened.Get(&key)
	require.NoError(t, err)
	want := felt.FromUint64(33)
	assert.True(t, want.Equal(&got))

	// Mutating the reopened trie must keep working across committed nodes.
	newVal := felt.FromUint64(1234)
	require.NoError(t, reopened.Update(&key, &newVal))
	got, err = reopened.Get(&key)
	require.NoError(t, err)
	assert.True(t, newVal.Equal(&got))
}

func TestStructuralSharing(t *testing.T) {
	t.Parallel()

	const population = 512

	reader := newMapReader()
	tr := New(reader, felt.Felt{}, crypto.Pedersen)
	for i := uint64(0); i < population; i++ {
		key := felt.FromUint64(i*7 + 1)
		value := felt.FromUint64(i + 1)
		require.NoError(t, tr.Update(&key, &value))
	}
	root, set := tr.Commit()
	reader.absorb(set)
	total := len(reader.nodes)
	require.Greater(t, total, population/2)

	// Touch k keys: the new version may only introduce O(k * depth) nodes.
	const touched = 4
	next := New(reader, root, crypto.Pedersen)
	for i := uint64(0); i < touched; i++ {
		key := felt.FromUint64(i*7 + 1)
		value := felt.FromUint64(90000 + i)
		require.NoError(t, next.Update(&key, &value))
	}
	_, diffSet := next.Commit()

	bound := touched * KeyLen
	assert.LessOrEqual(t, len(diffSet.Nodes), bound,
		"expected O(k*depth) new nodes, got %d for %d touched keys over %d total", len(diffSet.Nodes), touched, total)
	assert.Less(t, len(diffSet.Nodes), total/4, "diff must not rewrite the trie")
}

func TestRandomizedOpsMatchFreshBuild(t *testing.T) {
	t.Parallel()

	const steps = 1500
	rng := rand.New(rand.NewSource(42))

	reader := newMapReader()
	tr := New(reader, felt.Felt{}, crypto.Pedersen)
	reference := make(map[uint64]uint64)

	for i := 0; i < steps; i++ {
		k := uint64(rng.Intn(200) + 1)
		key := felt.FromUint64(k)
		if _, exists := reference[k]; exists && rng.Intn(4) == 0 {
			require.NoError(t, tr.Update(&key, &felt.Zero))
			delete(reference, k)
		} else {
			v := rng.Uint64()%1_000_000 + 1
			value := felt.FromUint64(v)
			require.NoError(t, tr.Update(&key, &value))
			reference[k] = v
		}

		// Commit periodically so later operations resolve through the
		// committed node table rather than the overlay alone.
		if i%200 == 199 {
			root, set := tr.Commit()
			reader.absorb(set)
			tr = New(reader, root, crypto.Pedersen)
		}
	}

	fresh := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	for k, v := range reference {
		key := felt.FromUint64(k)
		value := felt.FromUint64(v)
		require.NoError(t, fresh.Update(&key, &value))
	}

	incremental, rebuilt := tr.Root(), fresh.Root()
	assert.True(t, incremental.Equal(&rebuilt), "incremental %s rebuilt %s", incremental, rebuilt)

	for k, v := range reference {
		key := felt.FromUint64(k)
		got, err := tr.Get(&key)
		require.NoError(t, err)
		want := felt.FromUint64(v)
		assert.True(t, want.Equal(&got), "key %d", k)
	}
}

func TestRepeatedCommitIsStable(t *testing.T) {
	t.Parallel()

	tr := New(newMapReader(), felt.Felt{}, crypto.Pedersen)
	for i := uint64(1); i <= 10; i++ {
		key := felt.FromUint64(i)
		value := felt.FromUint64(i)
		require.NoError(t, tr.Update(&key, &value))
	}
	first, firstSet := tr.Commit()
	second, secondSet := tr.Commit()

	assert.True(t, first.Equal(&second))
	assert.Equal(t, len(firstSet.Nodes), len(secondSet.Nodes))
}

func TestNodeEncodeDecode(t *testing.T) {
	t.Parallel()

	key := felt.FromUint64(0b1101)
	edge := &Node{
		Kind:  KindEdge,
		Path:  FeltPath(&key).Sub(100, 140),
		Child: felt.FromUint64(77),
	}
	binary := &Node{
		Kind:  KindBinary,
		Left:  felt.FromUint64(1),
		Right: felt.FromUint64(2),
	}

	for i, n := range []*Node{edge, binary} {
		t.Run(fmt.Sprintf("node_%d", i), func(t *testing.T) {
			decoded, err := DecodeNode(n.Encode())
			require.NoError(t, err)
			h1 := n.Hash(crypto.Pedersen)
			h2 := decoded.Hash(crypto.Pedersen)
			assert.True(t, h1.Equal(&h2))
		})
	}

	_, err := DecodeNode(nil)
	require.Error(t, err)
	_, err = DecodeNode([]byte{99})
	require.Error(t, err)
}
