package zarr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TuSKan/go-zarr/store"
)

// Group is a hierarchy node holding named children.
type Group struct {
	nodeBase
	children map[string]Node
	order    []string
}

func newGroup(base nodeBase) *Group {
	return &Group{nodeBase: base, children: map[string]Node{}}
}

func (g *Group) IsGroup() bool { return true }

// Child returns the named child, or nil.
func (g *Group) Child(name string) Node {
	return g.children[name]
}

// Children returns the children in insertion order.
func (g *Group) Children() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.children[name])
	}
	return out
}

// Groups returns the paths of the immediate child groups.
func (g *Group) Groups() []string {
	var out []string
	for _, name := range g.order {
		if g.children[name].IsGroup() {
			out = append(out, g.children[name].Path())
		}
	}
	sort.Strings(out)
	return out
}

// Arrays returns the paths of the immediate child arrays.
func (g *Group) Arrays() []string {
	var out []string
	for _, name := range g.order {
		if !g.children[name].IsGroup() {
			out = append(out, g.children[name].Path())
		}
	}
	sort.Strings(out)
	return out
}

// Resolve walks a path from this group. Absolute paths restart at the
// root; relative paths may contain "." and "..". Resolution returns nil
// when a segment does not match, when ".." escapes above the root, or
// when a non-final segment lands on an array.
func (g *Group) Resolve(path string) Node {
	var cur Node = g
	if strings.HasPrefix(path, "/") {
		for cur.base().parent != nil {
			cur = cur.base().parent
		}
		path = strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return cur
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			parent := cur.base().parent
			if parent == nil {
				return nil
			}
			cur = parent
			continue
		}
		grp, ok := cur.(*Group)
		if !ok {
			return nil
		}
		child := grp.Child(seg)
		if child == nil {
			return nil
		}
		if !child.IsGroup() && i != len(segments)-1 {
			return nil
		}
		cur = child
	}
	return cur
}

func (g *Group) attach(child Node) {
	name := child.Name()
	if _, ok := g.children[name]; !ok {
		g.order = append(g.order, name)
	}
	g.children[name] = child
}

func (g *Group) detach(name string) {
	delete(g.children, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// AddGroup creates a child group. The metadata is committed to the store
// before the child becomes visible in the parent.
func (g *Group) AddGroup(ctx context.Context, name string) (*Group, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, ok := g.children[name]; ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrDuplicateName, name, g.Path())
	}
	doc, err := g.store.CreateGroup(ctx, g.Prefix(), name)
	if err != nil {
		return nil, err
	}
	child := newGroup(nodeBase{
		name:   name,
		parent: g,
		store:  g.store,
		doc:    doc,
		logger: g.logger,
	})
	g.attach(child)
	return child, nil
}

// AddArray creates a child array from a builder. The builder must be
// valid; its metadata is committed to the store before the child becomes
// visible in the parent.
func (g *Group) AddArray(ctx context.Context, name string, b *ArrayBuilder) (*Array, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, ok := g.children[name]; ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrDuplicateName, name, g.Path())
	}
	doc, err := b.Metadata()
	if err != nil {
		return nil, err
	}
	if doc.KeySeparator == "" {
		doc.KeySeparator = g.store.Separator()
	}
	persisted, err := g.store.CreateArray(ctx, g.Prefix(), name, doc)
	if err != nil {
		return nil, err
	}
	child, err := newArrayNode(nodeBase{
		name:   name,
		parent: g,
		store:  g.store,
		doc:    persisted,
		logger: g.logger,
	})
	if err != nil {
		return nil, err
	}
	g.attach(child)
	return child, nil
}

// Delete removes the named child. A populated child group is refused
// unless recursive is set; child arrays always delete together with
// their chunks.
func (g *Group) Delete(ctx context.Context, name string, recursive bool) error {
	child, ok := g.children[name]
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrNotFound, name, g.Path())
	}
	if grp, ok := child.(*Group); ok && !recursive && len(grp.children) > 0 {
		return fmt.Errorf("%w: %s", ErrNotEmpty, grp.Path())
	}
	if err := removeSubtree(ctx, g.store, child.Prefix()); err != nil {
		return err
	}
	g.detach(name)
	return nil
}

// DeleteAll erases every descendant of this group but preserves the group
// itself with minimal metadata.
func (g *Group) DeleteAll(ctx context.Context) error {
	if _, err := g.store.ErasePrefix(ctx, g.Prefix()); err != nil {
		return err
	}
	g.children = map[string]Node{}
	g.order = nil
	g.doc.Attributes = nil
	g.dirty = false
	return nil
}

// removeSubtree erases a node and everything below it. ErasePrefix leaves
// a minimal group document at the prefix, so that document is erased in a
// second step.
func removeSubtree(ctx context.Context, st store.Store, prefix string) error {
	if _, err := st.ErasePrefix(ctx, prefix); err != nil {
		return err
	}
	if _, err := st.Erase(ctx, store.MetadataKey(prefix)); err != nil {
		return err
	}
	return nil
}
