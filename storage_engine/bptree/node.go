// Package bptree is the disk-resident B+Tree used for every index: one
// tree per index, its nodes cached through the same buffer pool as heap
// pages. Leaves are linked both forward and backward (next/prev) so a
// range scan can continue from leaf to leaf without re-descending from
// the root; Iterator walks forward along next only.
package bptree

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/serialize"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
)

type NodeType uint8

const (
	NodeInternal NodeType = iota
	NodeLeaf
)

const (
	// MaxKeys is the fanout bound before a node splits.
	MaxKeys = 32
	MinKeys = MaxKeys / 2

	MaxKeyLen = 256
)

// NoPage marks an absent neighbor/parent/root link, aliasing the same
// reserved high-bit range the disk manager carves out for bitmap pages.
const NoPage = uint32(0xFFFFFFFF)

// Node is the in-memory form of one B+Tree page. Internal nodes carry
// len(children) == len(keys)+1; leaves carry len(values) == len(keys)
// and a value is a types.RowID rather than an arbitrary byte string,
// since a tree here always indexes into the heap.
type Node struct {
	pageID   uint32
	nodeType NodeType
	keys     [][]byte
	children []uint32   // internal only
	values   []types.RowID // leaf only
	next     uint32     // leaf only
	prev     uint32     // leaf only
	parent   uint32
}

/*
Node page layout past the common LSN/page-type header:

	Offset  Size  Field
	─────────────────────────────────
	9       1     isLeaf
	10      2     numKeys
	12      4     parent
	16      4     next   (leaf only, NoPage for internal)
	20      4     prev   (leaf only, NoPage for internal)
	─────────────────────────────────
	24            HeaderSize

Body: numKeys * [keyLen uint16][key bytes], then either
  internal: (numKeys+1) * [child uint32]
  leaf:      numKeys    * [value: 8-byte RowID]
*/
const nodeHeaderSize = 24

func encodeNode(n *Node, buf []byte) error {
	if n.nodeType == NodeLeaf {
		buf[page.TypeOffset] = byte(page.TypeBTreeLeaf)
	} else {
		buf[page.TypeOffset] = byte(page.TypeBTreeInternal)
	}

	off := 9
	if n.nodeType == NodeLeaf {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++
	serialize.PutUint16(buf[off:], uint16(len(n.keys)))
	off += 2
	serialize.PutUint32(buf[off:], n.parent)
	off += 4
	serialize.PutUint32(buf[off:], n.next)
	off += 4
	serialize.PutUint32(buf[off:], n.prev)
	off += 4

	for _, k := range n.keys {
		if len(k) > MaxKeyLen {
			return errors.Wrapf(storageerrors.ErrInvariantViolation, "encode_node: key length %d exceeds max %d", len(k), MaxKeyLen)
		}
		if off+2+len(k) > len(buf) {
			return errors.Wrap(storageerrors.ErrInvariantViolation, "encode_node: page overflow writing keys")
		}
		off += serialize.PutBytes(buf[off:], k)
	}

	if n.nodeType == NodeInternal {
		for _, c := range n.children {
			if off+4 > len(buf) {
				return errors.Wrap(storageerrors.ErrInvariantViolation, "encode_node: page overflow writing children")
			}
			serialize.PutUint32(buf[off:], c)
			off += 4
		}
	} else {
		for _, v := range n.values {
			if off+8 > len(buf) {
				return errors.Wrap(storageerrors.ErrInvariantViolation, "encode_node: page overflow writing values")
			}
			serialize.PutUint64(buf[off:], uint64(v))
			off += 8
		}
	}

	return nil
}

func decodeNode(pageID uint32, buf []byte) (*Node, error) {
	n := &Node{pageID: pageID}

	off := 9
	isLeaf := buf[off] == 1
	off++
	numKeys := int(serialize.Uint16(buf[off:]))
	off += 2
	n.parent = serialize.Uint32(buf[off:])
	off += 4
	n.next = serialize.Uint32(buf[off:])
	off += 4
	n.prev = serialize.Uint32(buf[off:])
	off += 4

	if isLeaf {
		n.nodeType = NodeLeaf
	} else {
		n.nodeType = NodeInternal
	}

	n.keys = make([][]byte, numKeys)
	for i := 0; i < numKeys; i++ {
		k, consumed := serialize.Bytes(buf[off:])
		n.keys[i] = k
		off += consumed
	}

	if isLeaf {
		n.values = make([]types.RowID, numKeys)
		for i := 0; i < numKeys; i++ {
			n.values[i] = types.RowID(serialize.Uint64(buf[off:]))
			off += 8
		}
	} else {
		n.children = make([]uint32, numKeys+1)
		for i := 0; i < numKeys+1; i++ {
			n.children[i] = serialize.Uint32(buf[off:])
			off += 4
		}
	}

	return n, nil
}
