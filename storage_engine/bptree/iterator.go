package bptree

import (
	"bytes"

	"github.com/EasonMa1135/MiniSQL-Database-System/types"
)

// Iterator is a forward range scan over leaf key/value pairs. It holds at
// most one leaf pinned at a time; Close releases it.
type Iterator struct {
	t      *Tree
	leaf   *Node
	index  int
	valid  bool
	hi     []byte // nil means unbounded
	hiIncl bool
}

// SeekGE positions an iterator at the first key >= target.
func (t *Tree) SeekGE(target []byte) (*Iterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	it := &Iterator{t: t}

	// Unlike findLeaf, an exact separator match descends left, so a run of
	// equal keys split across leaves is entered at its first entry.
	var leaf *Node
	var err error
	for nodeID := t.root; err == nil && leaf == nil; {
		var n *Node
		if n, err = t.fetchNode(nodeID); err == nil && n.nodeType == NodeLeaf {
			leaf = n
		} else if err == nil {
			nodeID = n.children[lowerBound(n.keys, target, t.cmp)]
			t.release(n, false)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(leaf.keys) == 0 {
		t.release(leaf, false)
		return it, nil
	}

	i := lowerBound(leaf.keys, target, t.cmp)
	if i < len(leaf.keys) {
		it.leaf = leaf
		it.index = i
		it.valid = true
		return it, nil
	}

	next := leaf.next
	t.release(leaf, false)
	if next == NoPage {
		return it, nil
	}
	nextLeaf, err := t.fetchNode(next)
	if err != nil || len(nextLeaf.keys) == 0 {
		if nextLeaf != nil {
			t.release(nextLeaf, false)
		}
		return it, err
	}
	it.leaf = nextLeaf
	it.index = 0
	it.valid = true
	return it, nil
}

// Next advances the iterator. Returns false once exhausted or once the
// upper bound set by Range has been passed.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	it.index++
	if it.index < len(it.leaf.keys) {
		it.applyHiBound()
		return it.valid
	}

	nextID := it.leaf.next
	it.t.release(it.leaf, false)
	it.leaf = nil

	if nextID == NoPage {
		it.valid = false
		return false
	}
	next, err := it.t.fetchNode(nextID)
	if err != nil || len(next.keys) == 0 {
		it.valid = false
		return false
	}
	it.leaf = next
	it.index = 0
	it.applyHiBound()
	return it.valid
}

// applyHiBound invalidates the iterator once its current key passes hi,
// releasing the pinned leaf the same way running off the end of the chain
// does.
func (it *Iterator) applyHiBound() {
	if !it.valid || it.hi == nil {
		return
	}
	c := bytes.Compare(it.Key(), it.hi)
	if (it.hiIncl && c > 0) || (!it.hiIncl && c >= 0) {
		it.t.release(it.leaf, false)
		it.leaf = nil
		it.valid = false
	}
}

func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.leaf.keys[it.index]
}

func (it *Iterator) Value() types.RowID {
	if !it.valid {
		return 0
	}
	return it.leaf.values[it.index]
}

// Range positions an iterator at the first key satisfying the lower
// bound (>= lo if loIncl, > lo otherwise; unbounded if lo is nil), and
// arranges for Next to stop once a key passes the upper bound (<= hi if
// hiIncl, < hi otherwise; unbounded if hi is nil). This is the
// descend-to-lo's-leaf-then-walk-next_leaf-until-hi primitive a range
// scan is built from.
func (t *Tree) Range(lo, hi []byte, loIncl, hiIncl bool) (*Iterator, error) {
	seekFrom := lo
	if seekFrom == nil {
		seekFrom = []byte{}
	}

	it, err := t.SeekGE(seekFrom)
	if err != nil {
		return nil, err
	}

	if lo != nil && !loIncl {
		for it.valid && bytes.Equal(it.Key(), lo) {
			it.Next()
		}
	}

	it.hi = hi
	it.hiIncl = hiIncl
	it.applyHiBound()
	return it, nil
}

// Close releases the currently pinned leaf, if any.
func (it *Iterator) Close() {
	if it.leaf != nil {
		it.t.release(it.leaf, false)
		it.leaf = nil
	}
	it.valid = false
}
