package trie

import (
	"errors"
	"fmt"

	"github.com/microbecode/madara/internal/crypto"
	"github.com/microbecode/madara/internal/felt"
)

// ErrNodeNotFound is returned by a NodeReader when a referenced node is not
// in the backing table.
var ErrNodeNotFound = errors.New("trie node not found")

// NodeReader resolves committed nodes by content hash.
type NodeReader interface {
	Node(hash *felt.Felt) (*Node, error)
}

// Kind discriminates persisted node layouts.
type Kind byte

const (
	// KindBinary is an internal node with two children.
	KindBinary Kind = iota
	// KindEdge is a path-compressed run ending in a child node or, when the
	// run bottoms out at KeyLen, in a leaf value.
	KindEdge
)

// Node is the persisted, content-addressed form of a trie node. Children are
// referenced by hash only.
type Node struct {
	Kind  Kind
	Left  felt.Felt // binary
	Right felt.Felt // binary
	Path  Path      // edge
	Child felt.Felt // edge: child hash, or the leaf value at full depth
}

// Hash computes the node's content hash under h:
// binary = h(left, right); edge = h(child, path) + len(path).
func (n *Node) Hash(h crypto.HashFn) felt.Felt {
	switch n.Kind {
	case KindBinary:
		return h(&n.Left, &n.Right)
	case KindEdge:
		pathFelt := n.Path.Felt()
		length := felt.FromUint64(uint64(n.Path.Len()))
		sum := h(&n.Child, &pathFelt)
		return sum.Add(&length)
	default:
		panic(fmt.Sprintf("trie: unknown node kind %d", n.Kind))
	}
}

const (
	binaryNodeSize = 1 + 2*felt.Bytes
	edgeNodeSize   = 1 + 1 + 32 + felt.Bytes
)

// Encode serializes the node for the content-addressed table.
func (n *Node) Encode() []byte {
	switch n.Kind {
	case KindBinary:
		out := make([]byte, 0, binaryNodeSize)
		out = append(out, byte(KindBinary))
		left, right := n.Left.Bytes(), n.Right.Bytes()
		out = append(out, left[:]...)
		return append(out, right[:]...)
	case KindEdge:
		out := make([]byte, 0, edgeNodeSize)
		out = append(out, byte(KindEdge), n.Path.Len())
		out = append(out, n.Path.bits[:]...)
		child := n.Child.Bytes()
		return append(out, child[:]...)
	default:
		panic(fmt.Sprintf("trie: unknown node kind %d", n.Kind))
	}
}

// DecodeNode parses a node previously produced by Encode.
func DecodeNode(raw []byte) (*Node, error) {
	if len(raw) == 0 {
		return nil, errors.New("trie: empty node encoding")
	}
	switch Kind(raw[0]) {
	case KindBinary:
		if len(raw) != binaryNodeSize {
			return nil, fmt.Errorf("trie: binary node is %d bytes, want %d", len(raw), binaryNodeSize)
		}
		left, err := felt.FromBytes(raw[1 : 1+felt.Bytes])
		if err != nil {
			return nil, fmt.Errorf("trie: decode left child: %w", err)
		}
		right, err := felt.FromBytes(raw[1+felt.Bytes:])
		if err != nil {
			return nil, fmt.Errorf("trie: decode right child: %w", err)
		}
		return &Node{Kind: KindBinary, Left: left, Right: right}, nil
	case KindEdge:
		if len(raw) != edgeNodeSize {
			return nil, fmt.Errorf("trie: edge node is %d bytes, want %d", len(raw), edgeNodeSize)
		}
		length := raw[1]
		if length == 0 || length > KeyLen {
			return nil, fmt.Errorf("trie: edge length %d out of range", length)
		}
		path := Path{length: length}
		copy(path.bits[:], raw[2:34])
		child, err := felt.FromBytes(raw[34:])
		if err != nil {
			return nil, fmt.Errorf("trie: decode edge child: %w", err)
		}
		return &Node{Kind: KindEdge, Path: path, Child: child}, nil
	default:
		return nil, fmt.Errorf("trie: unknown node kind %d", raw[0])
	}
}
