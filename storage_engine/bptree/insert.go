package bptree

import (
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Insert adds key -> value. If the tree is unique and key already exists,
// it returns storageerrors.ErrDuplicateKey without mutating the tree. A
// non-unique tree keeps every (key, value) pair ever inserted — a repeat
// key becomes a second leaf entry next to the first, not an overwrite —
// so a lookup on a non-unique index can return every RowID that shares
// a key, per the leaf's merely non-decreasing key order.
func (t *Tree) Insert(key []byte, value types.RowID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf, err := t.findLeaf(t.root, key)
	if err != nil {
		return err
	}

	if t.unique {
		if idx := exactIndex(leaf.keys, key, t.cmp); idx != -1 {
			t.release(leaf, false)
			return errors.Wrapf(storageerrors.ErrDuplicateKey, "insert: key already present in unique index")
		}
	}

	pos := lowerBound(leaf.keys, key, t.cmp)
	leaf.keys = slices.Insert(leaf.keys, pos, key)
	leaf.values = slices.Insert(leaf.values, pos, value)

	if err := t.writeNode(leaf); err != nil {
		t.release(leaf, false)
		return err
	}

	if len(leaf.keys) > MaxKeys {
		err := t.splitLeaf(leaf)
		t.release(leaf, false)
		return err
	}

	t.release(leaf, false)
	return nil
}

func (t *Tree) splitLeaf(leaf *Node) error {
	mid := len(leaf.keys) / 2

	right, err := t.newNode(NodeLeaf)
	if err != nil {
		return err
	}

	right.keys = append(right.keys, leaf.keys[mid:]...)
	right.values = append(right.values, leaf.values[mid:]...)
	right.next = leaf.next
	right.prev = leaf.pageID
	right.parent = leaf.parent

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	oldNext := leaf.next
	leaf.next = right.pageID

	if err := t.writeNode(right); err != nil {
		t.release(right, false)
		return err
	}
	if err := t.writeNode(leaf); err != nil {
		t.release(right, false)
		return err
	}

	if oldNext != NoPage {
		if nextOfRight, err := t.fetchNode(oldNext); err == nil {
			nextOfRight.prev = right.pageID
			t.writeNode(nextOfRight)
			t.release(nextOfRight, false)
		}
	}

	sepKey := right.keys[0]
	t.release(right, false)

	if leaf.pageID == t.root {
		return t.createNewRoot(leaf.pageID, sepKey, right.pageID)
	}
	return t.insertIntoParent(leaf.parent, leaf.pageID, sepKey, right.pageID)
}

func (t *Tree) splitInternal(node *Node) error {
	mid := len(node.keys) / 2
	promoteKey := node.keys[mid]

	right, err := t.newNode(NodeInternal)
	if err != nil {
		return err
	}

	right.keys = append(right.keys, node.keys[mid+1:]...)
	right.children = append(right.children, node.children[mid+1:]...)
	right.parent = node.parent

	for _, childID := range right.children {
		child, err := t.fetchNode(childID)
		if err != nil {
			t.release(right, false)
			return err
		}
		child.parent = right.pageID
		err = t.writeNode(child)
		t.release(child, false)
		if err != nil {
			return err
		}
	}

	node.keys = node.keys[:mid]
	node.children = node.children[:mid+1]

	if err := t.writeNode(node); err != nil {
		t.release(right, false)
		return err
	}
	if err := t.writeNode(right); err != nil {
		t.release(right, false)
		return err
	}
	t.release(right, false)

	if node.pageID == t.root {
		return t.createNewRoot(node.pageID, promoteKey, right.pageID)
	}
	return t.insertIntoParent(node.parent, node.pageID, promoteKey, right.pageID)
}

func (t *Tree) insertIntoParent(parentID, leftID uint32, sepKey []byte, rightID uint32) error {
	parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	defer t.release(parent, false)

	idx := 0
	for idx < len(parent.children) && parent.children[idx] != leftID {
		idx++
	}

	parent.keys = slices.Insert(parent.keys, idx, sepKey)
	parent.children = slices.Insert(parent.children, idx+1, rightID)

	if right, err := t.fetchNode(rightID); err == nil {
		right.parent = parentID
		t.writeNode(right)
		t.release(right, false)
	}

	if err := t.writeNode(parent); err != nil {
		return err
	}

	if len(parent.keys) > MaxKeys {
		return t.splitInternal(parent)
	}
	return nil
}

func (t *Tree) createNewRoot(leftID uint32, promoteKey []byte, rightID uint32) error {
	root, err := t.newNode(NodeInternal)
	if err != nil {
		return err
	}
	defer t.release(root, false)

	root.keys = append(root.keys, promoteKey)
	root.children = append(root.children, leftID, rightID)
	root.parent = NoPage

	for _, childID := range []uint32{leftID, rightID} {
		child, err := t.fetchNode(childID)
		if err != nil {
			return err
		}
		child.parent = root.pageID
		err = t.writeNode(child)
		t.release(child, false)
		if err != nil {
			return err
		}
	}

	if err := t.writeNode(root); err != nil {
		return err
	}
	return t.setRoot(root.pageID)
}
