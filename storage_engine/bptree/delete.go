package bptree

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Delete removes key, redistributing from a sibling or merging underflowed
// nodes on the way back up, and collapsing the root if it is left with a
// single child. Deleting an absent key returns storageerrors.ErrNotFound.
func (t *Tree) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.deleteRecursive(t.root, key)
	return err
}

// deleteRecursive returns whether nodeID's subtree underflowed below
// MinKeys after the delete (ignored for the root).
func (t *Tree) deleteRecursive(nodeID uint32, key []byte) (bool, error) {
	node, err := t.fetchNode(nodeID)
	if err != nil {
		return false, err
	}
	defer func() { t.writeNode(node); t.release(node, false) }()

	if node.nodeType == NodeLeaf {
		idx := exactIndex(node.keys, key, t.cmp)
		if idx == -1 {
			return false, errors.Wrapf(storageerrors.ErrNotFound, "delete: key not found")
		}
		node.keys = slices.Delete(node.keys, idx, idx+1)
		node.values = slices.Delete(node.values, idx, idx+1)
		return nodeID != t.root && len(node.keys) < MinKeys, nil
	}

	i := lowerBound(node.keys, key, t.cmp)
	if i < len(node.keys) && t.cmp(node.keys[i], key) == 0 {
		i++
	}
	if i >= len(node.children) {
		i = len(node.children) - 1
	}

	underflow, err := t.deleteRecursive(node.children[i], key)
	if err != nil || !underflow {
		return false, err
	}

	return t.fixUnderflow(node, i)
}

// fixUnderflow repairs node.children[i] by borrowing from a sibling, or
// merging with one and removing the separator from node. Returns whether
// node itself now underflows.
func (t *Tree) fixUnderflow(node *Node, i int) (bool, error) {
	child, err := t.fetchNode(node.children[i])
	if err != nil {
		return false, err
	}
	defer func() { t.writeNode(child); t.release(child, false) }()

	var left, right *Node
	if i > 0 {
		left, err = t.fetchNode(node.children[i-1])
		if err != nil {
			return false, err
		}
		defer func() { t.writeNode(left); t.release(left, false) }()
	}
	if i < len(node.children)-1 {
		right, err = t.fetchNode(node.children[i+1])
		if err != nil {
			return false, err
		}
		defer func() { t.writeNode(right); t.release(right, false) }()
	}

	if left != nil && len(left.keys) > MinKeys {
		t.borrowFromLeft(node, i, left, child)
		return false, nil
	}
	if right != nil && len(right.keys) > MinKeys {
		t.borrowFromRight(node, i, right, child)
		return false, nil
	}

	if left != nil {
		if err := t.mergeInto(left, child, node.keys[i-1]); err != nil {
			return false, err
		}
		node.keys = slices.Delete(node.keys, i-1, i)
		node.children = slices.Delete(node.children, i, i+1)
	} else if right != nil {
		if err := t.mergeInto(child, right, node.keys[i]); err != nil {
			return false, err
		}
		node.keys = slices.Delete(node.keys, i, i+1)
		node.children = slices.Delete(node.children, i+1, i+2)
	}

	if node.pageID == t.root && len(node.keys) == 0 && len(node.children) == 1 {
		newRoot := node.children[0]
		if nr, err := t.fetchNode(newRoot); err == nil {
			nr.parent = NoPage
			t.writeNode(nr)
			t.release(nr, false)
		}
		return false, t.setRoot(newRoot)
	}

	return node.pageID != t.root && len(node.keys) < MinKeys, nil
}

func (t *Tree) borrowFromLeft(parent *Node, i int, left, child *Node) {
	if child.nodeType == NodeLeaf {
		lastKey := left.keys[len(left.keys)-1]
		lastVal := left.values[len(left.values)-1]
		left.keys = left.keys[:len(left.keys)-1]
		left.values = left.values[:len(left.values)-1]

		child.keys = slices.Insert(child.keys, 0, lastKey)
		child.values = slices.Insert(child.values, 0, lastVal)
		parent.keys[i-1] = child.keys[0]
		return
	}

	sep := parent.keys[i-1]
	lastKey := left.keys[len(left.keys)-1]
	lastChild := left.children[len(left.children)-1]
	left.keys = left.keys[:len(left.keys)-1]
	left.children = left.children[:len(left.children)-1]

	child.keys = slices.Insert(child.keys, 0, sep)
	child.children = slices.Insert(child.children, 0, lastChild)

	if moved, err := t.fetchNode(lastChild); err == nil {
		moved.parent = child.pageID
		t.writeNode(moved)
		t.release(moved, false)
	}
	parent.keys[i-1] = lastKey
}

func (t *Tree) borrowFromRight(parent *Node, i int, right, child *Node) {
	if child.nodeType == NodeLeaf {
		firstKey := right.keys[0]
		firstVal := right.values[0]
		right.keys = right.keys[1:]
		right.values = right.values[1:]

		child.keys = append(child.keys, firstKey)
		child.values = append(child.values, firstVal)
		parent.keys[i] = right.keys[0]
		return
	}

	sep := parent.keys[i]
	firstKey := right.keys[0]
	firstChild := right.children[0]
	right.keys = right.keys[1:]
	right.children = right.children[1:]

	child.keys = append(child.keys, sep)
	child.children = append(child.children, firstChild)

	if moved, err := t.fetchNode(firstChild); err == nil {
		moved.parent = child.pageID
		t.writeNode(moved)
		t.release(moved, false)
	}
	parent.keys[i] = firstKey
}

// mergeInto folds right into left — for leaves, separator is unused but
// kept in the signature for symmetry with the internal-node case.
func (t *Tree) mergeInto(left, right *Node, separator []byte) error {
	if left.nodeType == NodeLeaf {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.next = right.next
		if right.next != NoPage {
			if n, err := t.fetchNode(right.next); err == nil {
				n.prev = left.pageID
				t.writeNode(n)
				t.release(n, false)
			}
		}
		return nil
	}

	left.keys = append(left.keys, separator)
	left.keys = append(left.keys, right.keys...)
	left.children = append(left.children, right.children...)

	for _, childID := range right.children {
		if moved, err := t.fetchNode(childID); err == nil {
			moved.parent = left.pageID
			t.writeNode(moved)
			t.release(moved, false)
		}
	}
	return nil
}
