package bptree

import (
	"bytes"
	"sync"

	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/storageerrors"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// pager is the slice of the buffer pool a tree needs.
type pager interface {
	FetchPage(id uint32) (*page.Page, error)
	NewPage() (*page.Page, error)
	UnpinPage(id uint32, dirty bool) error
}

// RootSetter is called whenever a split or root collapse changes the
// tree's root page — the owner (an Index handle) persists it to the
// catalog so the tree can be reopened at the right page.
type RootSetter func(root uint32) error

// Tree is one disk-resident B+Tree. Unique enforces at most one value per
// key; a duplicate insert is rejected with storageerrors.ErrDuplicateKey
// without mutating the tree.
type Tree struct {
	pool   pager
	root   uint32
	unique bool
	cmp    func(a, b []byte) int
	onRoot RootSetter

	mu sync.RWMutex
}

func cmpBytesAscending(a, b []byte) int { return bytes.Compare(a, b) }

// Create allocates a fresh, empty leaf as the tree's root.
func Create(pool pager, unique bool, onRoot RootSetter) (*Tree, error) {
	t := &Tree{pool: pool, unique: unique, cmp: cmpBytesAscending, onRoot: onRoot}

	root, err := t.newNode(NodeLeaf)
	if err != nil {
		return nil, err
	}
	root.next = NoPage
	root.prev = NoPage
	root.parent = NoPage
	if err := t.writeNode(root); err != nil {
		return nil, err
	}
	t.root = root.pageID
	if err := t.pool.UnpinPage(root.pageID, true); err != nil {
		return nil, err
	}
	if onRoot != nil {
		if err := onRoot(t.root); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Open resumes a tree whose root page ID is already known, e.g. loaded
// from a catalog index record.
func Open(pool pager, root uint32, unique bool, onRoot RootSetter) *Tree {
	return &Tree{pool: pool, root: root, unique: unique, cmp: cmpBytesAscending, onRoot: onRoot}
}

func (t *Tree) Root() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

func (t *Tree) setRoot(id uint32) error {
	t.root = id
	if t.onRoot != nil {
		return t.onRoot(id)
	}
	return nil
}

// newNode allocates a fresh page and returns a pinned, empty Node of the
// given type.
func (t *Tree) newNode(nodeType NodeType) (*Node, error) {
	pg, err := t.pool.NewPage()
	if err != nil {
		return nil, err
	}
	n := &Node{
		pageID:   pg.ID,
		nodeType: nodeType,
		keys:     make([][]byte, 0),
		children: make([]uint32, 0),
		values:   make([]types.RowID, 0),
		next:     NoPage,
		prev:     NoPage,
		parent:   NoPage,
	}
	if err := encodeNode(n, pg.Data); err != nil {
		t.pool.UnpinPage(pg.ID, false)
		return nil, err
	}
	return n, nil
}

// fetchNode loads and decodes a node, returning it pinned.
func (t *Tree) fetchNode(id uint32) (*Node, error) {
	if id == NoPage {
		return nil, errors.Wrap(storageerrors.ErrInvalidPage, "fetch_node: no page")
	}
	pg, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, err
	}
	pg.RLock()
	n, err := decodeNode(id, pg.Data)
	pg.RUnlock()
	if err != nil {
		t.pool.UnpinPage(id, false)
		return nil, err
	}
	return n, nil
}

// writeNode re-encodes n into its resident frame. Caller still owns the
// pin and must release it separately.
func (t *Tree) writeNode(n *Node) error {
	pg, err := t.pool.FetchPage(n.pageID)
	if err != nil {
		return err
	}

	pg.Lock()
	err = encodeNode(n, pg.Data)
	pg.Unlock()
	if err != nil {
		t.pool.UnpinPage(n.pageID, false)
		return err
	}
	return t.pool.UnpinPage(n.pageID, true)
}

// release unpins a node, marking it dirty for flush if requested.
func (t *Tree) release(n *Node, dirty bool) {
	if n == nil {
		return
	}
	if err := t.pool.UnpinPage(n.pageID, dirty); err != nil {
		log.WithError(err).WithField("page", n.pageID).Warn("bptree: unpin failed")
	}
}
