package trie

import (
	"fmt"

	"github.com/microbecode/madara/internal/crypto"
	"github.com/microbecode/madara/internal/felt"
)

// memNode is an uncommitted node. Nodes are persistent in the functional
// sense: an update rebuilds the path from the changed leaf to the root and
// reuses every untouched subtree by reference, so per-update work is bounded
// by the trie depth.
type memNode struct {
	kind       Kind
	left       *ref // binary
	right      *ref // binary
	path       Path // edge
	child      *ref // edge
	cachedHash *felt.Felt
}

// ref points at a subtree: either an in-memory node, or the content hash of a
// committed node (a raw leaf value when the subtree sits at full depth).
// A nil *ref is the empty subtree.
type ref struct {
	hash felt.Felt
	node *memNode
}

// NodeSet is the set of nodes a commit introduces, keyed by content hash.
type NodeSet struct {
	Nodes map[felt.Felt]*Node
}

// Trie is a mutable overlay over a committed node table. It is not safe for
// concurrent use; the state layer gives each goroutine its own Trie.
type Trie struct {
	reader NodeReader
	hash   crypto.HashFn
	root   *ref
}

// New opens a trie at the given committed root. A zero root is the empty trie.
func New(reader NodeReader, root felt.Felt, hash crypto.HashFn) *Trie {
	t := &Trie{reader: reader, hash: hash}
	if !root.IsZero() {
		t.root = &ref{hash: root}
	}
	return t
}

// Get returns the value at key, or the zero felt when absent.
func (t *Trie) Get(key *felt.Felt) (felt.Felt, error) {
	path := FeltPath(key)
	r := t.root
	depth := uint8(0)
	for r != nil {
		if depth == KeyLen {
			return r.hash, nil
		}
		n, err := t.resolve(r)
		if err != nil {
			return felt.Felt{}, err
		}
		switch n.kind {
		case KindBinary:
			if path.Bit(depth) == 0 {
				r = n.left
			} else {
				r = n.right
			}
			depth++
		case KindEdge:
			seg := path.Sub(depth, depth+n.path.Len())
			if !n.path.Equal(seg) {
				return felt.Felt{}, nil
			}
			depth += n.path.Len()
			r = n.child
		}
	}
	return felt.Felt{}, nil
}

// Update sets key to value; a zero value deletes the key.
func (t *Trie) Update(key, value *felt.Felt) error {
	path := FeltPath(key)
	newRoot, err := t.insert(t.root, 0, path, *value)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

// Commit computes the root hash and collects every node the current overlay
// would introduce. It does not write anywhere; repeated calls are cheap
// because subtree hashes are cached on the overlay nodes.
func (t *Trie) Commit() (felt.Felt, *NodeSet) {
	set := &NodeSet{Nodes: make(map[felt.Felt]*Node)}
	root := t.subtreeHash(t.root, set)
	return root, set
}

// Root computes the root hash without materializing the node set.
func (t *Trie) Root() felt.Felt {
	root, _ := t.Commit()
	return root
}

func (t *Trie) resolve(r *ref) (*memNode, error) {
	if r.node != nil {
		return r.node, nil
	}
	stored, err := t.reader.Node(&r.hash)
	if err != nil {
		return nil, fmt.Errorf("resolve node %s: %w", &r.hash, err)
	}
	switch stored.Kind {
	case KindBinary:
		return &memNode{
			kind:  KindBinary,
			left:  &ref{hash: stored.Left},
			right: &ref{hash: stored.Right},
		}, nil
	case KindEdge:
		return &memNode{
			kind:  KindEdge,
			path:  stored.Path,
			child: &ref{hash: stored.Child},
		}, nil
	default:
		return nil, fmt.Errorf("resolve node %s: unknown kind %d", &r.hash, stored.Kind)
	}
}

// insert returns the replacement subtree for r after setting path to value.
// It returns r itself (pointer-identical) when nothing changed.
func (t *Trie) insert(r *ref, depth uint8, path Path, value felt.Felt) (*ref, error) {
	if r == nil {
		if value.IsZero() {
			return nil, nil
		}
		if depth == KeyLen {
			return &ref{hash: value}, nil
		}
		return newLeafEdge(depth, path, value), nil
	}

	if depth == KeyLen {
		if value.IsZero() {
			return nil, nil
		}
		if r.node == nil && r.hash.Equal(&value) {
			return r, nil
		}
		return &ref{hash: value}, nil
	}

	n, err := t.resolve(r)
	if err != nil {
		return nil, err
	}

	switch n.kind {
	case KindEdge:
		return t.insertEdge(r, n, depth, path, value)
	case KindBinary:
		return t.insertBinary(r, n, depth, path, value)
	default:
		return nil, fmt.Errorf("trie: unknown node kind %d at depth %d", n.kind, depth)
	}
}

func (t *Trie) insertEdge(r *ref, n *memNode, depth uint8, path Path, value felt.Felt) (*ref, error) {
	edgeLen := n.path.Len()
	seg := path.Sub(depth, depth+edgeLen)
	common := n.path.CommonPrefixLen(seg)

	if common == edgeLen {
		newChild, err := t.insert(n.child, depth+edgeLen, path, value)
		if err != nil {
			return nil, err
		}
		if newChild == n.child {
			return r, nil
		}
		if newChild == nil {
			// The edge's only descendant was the deleted leaf.
			return nil, nil
		}
		return mergeEdge(n.path, newChild), nil
	}

	// The key diverges inside the edge's path.
	if value.IsZero() {
		return r, nil
	}

	// Tail of the original edge below the split point.
	var oldSub *ref
	if tail := n.path.Sub(common+1, edgeLen); tail.Len() > 0 {
		oldSub = &ref{node: &memNode{kind: KindEdge, path: tail, child: n.child}}
	} else {
		oldSub = n.child
	}

	var newSub *ref
	if rem := path.Sub(depth+common+1, KeyLen); rem.Len() > 0 {
		newSub = &ref{node: &memNode{kind: KindEdge, path: rem, child: &ref{hash: value}}}
	} else {
		newSub = &ref{hash: value}
	}

	branch := &memNode{kind: KindBinary}
	if n.path.Bit(common) == 0 {
		branch.left, branch.right = oldSub, newSub
	} else {
		branch.left, branch.right = newSub, oldSub
	}
	branchRef := &ref{node: branch}

	if common == 0 {
		return branchRef, nil
	}
	return &ref{node: &memNode{kind: KindEdge, path: n.path.Sub(0, common), child: branchRef}}, nil
}

func (t *Trie) insertBinary(r *ref, n *memNode, depth uint8, path Path, value felt.Felt) (*ref, error) {
	bit := path.Bit(depth)
	child, sibling := n.left, n.right
	if bit == 1 {
		child, sibling = n.right, n.left
	}

	newChild, err := t.insert(child, depth+1, path, value)
	if err != nil {
		return nil, err
	}
	if newChild == child {
		return r, nil
	}

	if newChild != nil {
		replaced := &memNode{kind: KindBinary}
		if bit == 0 {
			replaced.left, replaced.right = newChild, sibling
		} else {
			replaced.left, replaced.right = sibling, newChild
		}
		return &ref{node: replaced}, nil
	}

	// Deletion emptied one side; collapse the binary node into an edge
	// pointing at the surviving sibling.
	return t.collapseInto(depth, 1-bit, sibling)
}

// collapseInto builds the edge replacing a binary node whose other child was
// deleted. siblingBit is the branch bit of the survivor.
func (t *Trie) collapseInto(depth, siblingBit uint8, sibling *ref) (*ref, error) {
	step := Path{}.AppendBit(siblingBit)
	if depth+1 == KeyLen {
		// Survivor is a raw value.
		return &ref{node: &memNode{kind: KindEdge, path: step, child: sibling}}, nil
	}
	n, err := t.resolve(sibling)
	if err != nil {
		return nil, err
	}
	if n.kind == KindEdge {
		return &ref{node: &memNode{kind: KindEdge, path: step.Append(n.path), child: n.child}}, nil
	}
	return &ref{node: &memNode{kind: KindEdge, path: step, child: sibling}}, nil
}

// mergeEdge prefixes child with path, flattening edge-over-edge so the
// compression invariant (an edge never points at another edge) holds.
func mergeEdge(path Path, child *ref) *ref {
	if child.node != nil && child.node.kind == KindEdge {
		return &ref{node: &memNode{
			kind:  KindEdge,
			path:  path.Append(child.node.path),
			child: child.node.child,
		}}
	}
	return &ref{node: &memNode{kind: KindEdge, path: path, child: child}}
}

func newLeafEdge(depth uint8, path Path, value felt.Felt) *ref {
	return &ref{node: &memNode{
		kind:  KindEdge,
		path:  path.Sub(depth, KeyLen),
		child: &ref{hash: value},
	}}
}

// subtreeHash hashes r bottom-up, adding every in-memory node to set.
func (t *Trie) subtreeHash(r *ref, set *NodeSet) felt.Felt {
	if r == nil {
		return felt.Felt{}
	}
	if r.node == nil {
		return r.hash
	}
	n := r.node
	if n.cachedHash != nil {
		// Subtree already hashed; still record its nodes for the set.
		t.collectCached(r, set)
		return *n.cachedHash
	}

	var persisted *Node
	switch n.kind {
	case KindBinary:
		persisted = &Node{
			Kind:  KindBinary,
			Left:  t.subtreeHash(n.left, set),
			Right: t.subtreeHash(n.right, set),
		}
	case KindEdge:
		persisted = &Node{
			Kind:  KindEdge,
			Path:  n.path,
			Child: t.subtreeHash(n.child, set),
		}
	}
	h := persisted.Hash(t.hash)
	n.cachedHash = &h
	set.Nodes[h] = persisted
	return h
}

// collectCached re-walks an already-hashed in-memory subtree so repeated
// Commit calls return the full node set.
func (t *Trie) collectCached(r *ref, set *NodeSet) {
	if r == nil || r.node == nil {
		return
	}
	n := r.node
	if _, ok := set.Nodes[*n.cachedHash]; ok {
		return
	}
	switch n.kind {
	case KindBinary:
		set.Nodes[*n.cachedHash] = &Node{
			Kind:  KindBinary,
			Left:  t.subtreeHash(n.left, set),
			Right: t.subtreeHash(n.right, set),
		}
	case KindEdge:
		set.Nodes[*n.cachedHash] = &Node{
			Kind:  KindEdge,
			Path:  n.path,
			Child: t.subtreeHash(n.child, set),
		}
	}
}
