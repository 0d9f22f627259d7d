// Index inspection for debugging: DebugDump prints a BFS-ordered dump of
// a tree's node structure, level by level.
package bptree

import (
	"fmt"
	"io"
)

// DebugDump writes a human-readable dump of the tree to w: root page ID,
// then each node's keys and (for leaves) key -> RowID, level by level.
func (t *Tree) DebugDump(w io.Writer) error {
	root := t.Root()
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }
	pln := func(s string) { fmt.Fprintln(w, s) }

	p("root page = %d\n", root)
	if root == NoPage {
		pln("(empty tree)")
		return nil
	}

	queue := []uint32{root}
	level := 0

	for len(queue) > 0 {
		size := len(queue)
		p("level %d:\n", level)
		for i := 0; i < size; i++ {
			pageID := queue[i]
			n, err := t.fetchNode(pageID)
			if err != nil {
				p("  [page %d] fetch error: %v\n", pageID, err)
				continue
			}

			if n.nodeType == NodeInternal {
				p("  [page %d] internal numKeys=%d keys=%x children=%v\n", pageID, len(n.keys), n.keys, n.children)
				queue = append(queue, n.children...)
			} else {
				p("  [page %d] leaf numKeys=%d next=%d prev=%d\n", pageID, len(n.keys), n.next, n.prev)
				for j, k := range n.keys {
					p("    %x -> %s\n", k, n.values[j])
				}
			}
			t.release(n, false)
		}
		queue = queue[size:]
		level++
	}

	return nil
}
