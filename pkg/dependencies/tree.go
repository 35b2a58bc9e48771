package dependencies

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// Tree is the rooted hierarchy built from a flat edge list. Nodes are stored in
// a slice and linked by index; node 0 is the root.
type Tree struct {
	nodes []treeNode
}

// treeNode groups the edges originating from one component by kind
type treeNode struct {
	key        string
	ref        metadata.Ref
	kinds      []metadata.Kind
	references map[metadata.Kind][]branch
	parent     int
}

// branch is one edge of a node. child is the index of the node holding the
// references of the edge target, or -1 for a leaf.
type branch struct {
	edge  metadata.Edge
	child int
}

// branchRef locates a branch inside the arena
type branchRef struct {
	node int
	kind metadata.Kind
	pos  int
}

// BuildTree turns edges into a single rooted hierarchy. Edges are grouped by
// their origin; every origin is then attached below the first non-repeated edge
// pointing at it, matching keys case-insensitively. The root is the origin of the
// first edge, or the entry point when there are no edges. Origins that cannot be
// reached from the root are dropped.
func BuildTree(entry metadata.EntryPoint, edges []metadata.Edge) *Tree {
	t := &Tree{}
	index := make(map[string]int)

	for _, e := range edges {
		key := metadata.NodeKey(e.ReferencedBy.Name, e.ReferencedBy.ID)
		lower := strings.ToLower(key)
		i, ok := index[lower]
		if !ok {
			i = t.add(key, e.ReferencedBy)
			index[lower] = i
		}
		n := &t.nodes[i]
		if _, ok := n.references[e.Type]; !ok {
			n.kinds = append(n.kinds, e.Type)
		}
		n.references[e.Type] = append(n.references[e.Type], branch{edge: e, child: -1})
	}
	if len(t.nodes) == 0 {
		t.add(metadata.NodeKey(entry.Name, entry.ID), entry.Ref())
		return t
	}

	for i := range t.nodes {
		n := &t.nodes[i]
		for _, kind := range n.kinds {
			list := n.references[kind]
			sort.SliceStable(list, func(a, b int) bool {
				x, y := list[a].edge, list[b].edge
				if x.Name != y.Name {
					return x.Name < y.Name
				}
				return x.ID < y.ID
			})
		}
	}

	targets := make(map[string]branchRef)
	for i := range t.nodes {
		n := &t.nodes[i]
		for _, kind := range n.kinds {
			for pos, b := range n.references[kind] {
				if b.edge.Repeated {
					continue
				}
				key := strings.ToLower(b.edge.Key())
				if _, ok := targets[key]; !ok {
					targets[key] = branchRef{node: i, kind: kind, pos: pos}
				}
			}
		}
	}

	for i := 1; i < len(t.nodes); i++ {
		at, ok := targets[strings.ToLower(t.nodes[i].key)]
		if !ok || at.node == i || t.isAncestor(i, at.node) {
			continue
		}
		t.nodes[at.node].references[at.kind][at.pos].child = i
		t.nodes[i].parent = at.node
	}
	return t
}

func (t *Tree) add(key string, ref metadata.Ref) int {
	t.nodes = append(t.nodes, treeNode{
		key:        key,
		ref:        ref,
		references: make(map[metadata.Kind][]branch),
		parent:     -1,
	})
	return len(t.nodes) - 1
}

// isAncestor reports whether node a is node b or one of its ancestors
func (t *Tree) isAncestor(a, b int) bool {
	for n := b; n != -1; n = t.nodes[n].parent {
		if n == a {
			return true
		}
	}
	return false
}

// Node is the rendered root of a tree
type Node struct {
	metadata.Ref
	References map[metadata.Kind][]Branch `json:"references,omitempty"`
}

// Branch is a rendered edge together with the references of its target. The
// origin of a branch is its parent, so the edge's referencedBy is not rendered.
type Branch struct {
	metadata.Edge
	ReferencedBy struct{}                   `json:"-"`
	References   map[metadata.Kind][]Branch `json:"references,omitempty"`
}

// Root renders the hierarchy reachable from the root
func (t *Tree) Root() *Node {
	if t == nil || len(t.nodes) == 0 {
		return nil
	}
	path := map[int]bool{0: true}
	return &Node{Ref: t.nodes[0].ref, References: t.render(0, path)}
}

func (t *Tree) render(i int, path map[int]bool) map[metadata.Kind][]Branch {
	n := t.nodes[i]
	if len(n.kinds) == 0 {
		return nil
	}
	out := make(map[metadata.Kind][]Branch, len(n.kinds))
	for _, kind := range n.kinds {
		list := make([]Branch, 0, len(n.references[kind]))
		for _, b := range n.references[kind] {
			rendered := Branch{Edge: b.edge.Clone()}
			if b.child != -1 && !b.edge.Repeated && !path[b.child] {
				path[b.child] = true
				rendered.References = t.render(b.child, path)
				delete(path, b.child)
			}
			list = append(list, rendered)
		}
		out[kind] = list
	}
	return out
}

// Len returns the number of nodes reachable from the root, the root included
func (t *Tree) Len() int {
	if t == nil || len(t.nodes) == 0 {
		return 0
	}
	count := 0
	stack := []int{0}
	seen := map[int]bool{0: true}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for _, kind := range t.nodes[i].kinds {
			for _, b := range t.nodes[i].references[kind] {
				if b.child != -1 && !seen[b.child] {
					seen[b.child] = true
					stack = append(stack, b.child)
				}
			}
		}
	}
	return count
}

// MarshalJSON renders the tree from its root
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Root())
}

// Fprint writes the tree as indented text, one component per line
func (t *Tree) Fprint(w io.Writer) error {
	root := t.Root()
	if root == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s (%s)\n", root.Name, root.Type); err != nil {
		return err
	}
	return fprintBranches(w, root.References, 1)
}

func fprintBranches(w io.Writer, refs map[metadata.Kind][]Branch, depth int) error {
	kinds := make([]metadata.Kind, 0, len(refs))
	for k := range refs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	indent := strings.Repeat("  ", depth)
	for _, kind := range kinds {
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, kind); err != nil {
			return err
		}
		for _, b := range refs[kind] {
			line := indent + "  " + b.Name
			switch {
			case b.Dynamic:
				line += " [dynamic]"
			case b.Repeated:
				line += " [repeated]"
			}
			for _, p := range b.Pills {
				line += " <" + p.Label + ">"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
			if err := fprintBranches(w, b.References, depth+2); err != nil {
				return err
			}
		}
	}
	return nil
}
