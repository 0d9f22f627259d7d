package bptree

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
)

// exactIndex returns the index of key in keys, or -1.
func exactIndex(keys [][]byte, target []byte, cmp func(a, b []byte) int) int {
	lo, hi := 0, len(keys)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c := cmp(keys[mid], target)
		switch {
		case c == 0:
			return mid
		case c < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// lowerBound returns the index of the first key >= target.
func lowerBound(keys [][]byte, target []byte, cmp func(a, b []byte) int) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findLeaf descends from nodeID to the leaf that would contain key,
// unpinning every internal node it passes through. The returned leaf is
// pinned; the caller releases it.
func (t *Tree) findLeaf(nodeID uint32, key []byte) (*Node, error) {
	for {
		n, err := t.fetchNode(nodeID)
		if err != nil {
			return nil, err
		}
		if n.nodeType == NodeLeaf {
			return n, nil
		}

		i := lowerBound(n.keys, key, t.cmp)
		if i < len(n.keys) && t.cmp(n.keys[i], key) == 0 {
			// exact match on a separator: the right child holds it, since a
			// leaf split's copy-up key lives only in the new right leaf.
			i++
		}
		if i >= len(n.children) {
			i = len(n.children) - 1
		}
		next := n.children[i]
		t.release(n, false)
		nodeID = next
	}
}

// Search returns one RowID stored under key, or storageerrors.ErrNotFound.
// On a unique tree that RowID is the only one; on a non-unique tree, where
// a key may carry several RowIDs, callers that need every match should
// use SearchAll instead.
func (t *Tree) Search(key []byte) (types.RowID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, err := t.findLeaf(t.root, key)
	if err != nil {
		return 0, err
	}
	defer t.release(leaf, false)

	idx := exactIndex(leaf.keys, key, t.cmp)
	if idx == -1 {
		return 0, errors.Wrapf(storageerrors.ErrNotFound, "search: key not found")
	}
	return leaf.values[idx], nil
}

// SearchAll returns every RowID stored under key, walking the leaf chain
// past a split in case a run of equal keys straddles a page boundary.
// storageerrors.ErrNotFound if no entry carries key.
func (t *Tree) SearchAll(key []byte) ([]types.RowID, error) {
	it, err := t.SeekGE(key)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []types.RowID
	for it.valid && t.cmp(it.Key(), key) == 0 {
		out = append(out, it.Value())
		it.Next()
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(storageerrors.ErrNotFound, "search_all: key not found")
	}
	return out, nil
}
