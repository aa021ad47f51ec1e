// Package zarr reads and writes Zarr v3 hierarchical n-dimensional array
// datasets over an abstract key-value store, with read-only compatibility
// for Zarr v2.
package zarr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/TuSKan/go-zarr/meta"
	"github.com/TuSKan/go-zarr/store"
)

// Dataset is the entry point: it owns a store and the in-memory tree
// materialized from it. The root node is a group, or an array for
// single-array datasets.
type Dataset struct {
	store  store.Store
	root   Node
	logger *zap.Logger
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dataset) { d.logger = l }
}

func newDataset(st store.Store, opts ...Option) *Dataset {
	d := &Dataset{store: st, logger: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Create pairs a fresh store with an empty root group.
func Create(ctx context.Context, st store.Store, opts ...Option) (*Dataset, error) {
	d := newDataset(st, opts...)
	doc := meta.Group()
	if err := st.SetMetadata(ctx, "", doc); err != nil {
		return nil, err
	}
	d.root = newGroup(nodeBase{store: st, doc: doc, logger: d.logger})
	return d, nil
}

// CreateWithRootArray pairs a fresh store with a single root array, built
// from b. The resulting dataset has no groups.
func CreateWithRootArray(ctx context.Context, st store.Store, b *ArrayBuilder, opts ...Option) (*Dataset, error) {
	d := newDataset(st, opts...)
	doc, err := b.Metadata()
	if err != nil {
		return nil, err
	}
	if doc.KeySeparator == "" {
		doc.KeySeparator = st.Separator()
	}
	if err := st.SetMetadata(ctx, "", doc); err != nil {
		return nil, err
	}
	root, err := newArrayNode(nodeBase{store: st, doc: doc, logger: d.logger})
	if err != nil {
		return nil, err
	}
	d.root = root
	return d, nil
}

// Open reads the store's root metadata and materializes the hierarchy.
// Children whose metadata is missing or unrecognized are skipped.
func Open(ctx context.Context, st store.Store, opts ...Option) (*Dataset, error) {
	d := newDataset(st, opts...)
	doc, err := st.GetMetadata(ctx, "")
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: store holds no root metadata", ErrNotFound)
	}
	base := nodeBase{store: st, doc: doc, logger: d.logger}
	if doc.IsArray() {
		root, err := newArrayNode(base)
		if err != nil {
			return nil, err
		}
		d.root = root
		return d, nil
	}
	root := newGroup(base)
	d.root = root
	if st.Capabilities().Listing {
		if err := d.materialize(ctx, root); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dataset) materialize(ctx context.Context, g *Group) error {
	names, err := d.store.ListDir(ctx, g.Prefix())
	if err != nil {
		return err
	}
	for _, name := range names {
		if ValidateName(name) != nil {
			continue
		}
		childPrefix := store.ChildPrefix(g.Prefix(), name)
		doc, err := d.store.GetMetadata(ctx, childPrefix)
		if err != nil {
			d.logger.Debug("skipping unreadable child",
				zap.String("prefix", childPrefix), zap.Error(err))
			continue
		}
		if doc == nil {
			continue
		}
		base := nodeBase{name: name, parent: g, store: d.store, doc: doc, logger: d.logger}
		if doc.IsArray() {
			child, err := newArrayNode(base)
			if err != nil {
				d.logger.Debug("skipping invalid array",
					zap.String("prefix", childPrefix), zap.Error(err))
				continue
			}
			g.attach(child)
			continue
		}
		child := newGroup(base)
		g.attach(child)
		if err := d.materialize(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the root node.
func (d *Dataset) Root() Node { return d.root }

// Store returns the owned store.
func (d *Dataset) Store() store.Store { return d.store }

// Resolve walks an absolute path from the root. It returns nil for
// relative paths, unmatched segments, or traversal into an array.
func (d *Dataset) Resolve(path string) Node {
	if !strings.HasPrefix(path, "/") {
		return nil
	}
	if g, ok := d.root.(*Group); ok {
		return g.Resolve(path)
	}
	if path == "/" {
		return d.root
	}
	return nil
}

// Group resolves an absolute path to a group.
func (d *Dataset) Group(path string) (*Group, error) {
	n := d.Resolve(path)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a group", ErrNotFound, path)
	}
	return g, nil
}

// Array resolves an absolute path to an array.
func (d *Dataset) Array(path string) (*Array, error) {
	n := d.Resolve(path)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	a, ok := n.(*Array)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an array", ErrNotFound, path)
	}
	return a, nil
}

// Groups lists every group path in the hierarchy, the root included.
func (d *Dataset) Groups() []string {
	var out []string
	walk(d.root, func(n Node) {
		if n.IsGroup() {
			out = append(out, n.Path())
		}
	})
	sort.Strings(out)
	return out
}

// Arrays lists every array path in the hierarchy.
func (d *Dataset) Arrays() []string {
	var out []string
	walk(d.root, func(n Node) {
		if !n.IsGroup() {
			out = append(out, n.Path())
		}
	})
	sort.Strings(out)
	return out
}

func walk(n Node, fn func(Node)) {
	fn(n)
	if g, ok := n.(*Group); ok {
		for _, child := range g.Children() {
			walk(child, fn)
		}
	}
}

func (d *Dataset) parentAndName(path string) (*Group, string, error) {
	trimmed := strings.TrimSuffix(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if !strings.HasPrefix(path, "/") || i < 0 || trimmed == "" {
		return nil, "", fmt.Errorf("%w: %q is not an absolute node path", ErrNotFound, path)
	}
	parentPath := trimmed[:i]
	if parentPath == "" {
		parentPath = "/"
	}
	parent, err := d.Group(parentPath)
	if err != nil {
		return nil, "", err
	}
	return parent, trimmed[i+1:], nil
}

// AddGroup creates the group at an absolute path; the parent must exist.
func (d *Dataset) AddGroup(ctx context.Context, path string) (*Group, error) {
	parent, name, err := d.parentAndName(path)
	if err != nil {
		return nil, err
	}
	return parent.AddGroup(ctx, name)
}

// AddArray creates the array at an absolute path; the parent must exist.
func (d *Dataset) AddArray(ctx context.Context, path string, b *ArrayBuilder) (*Array, error) {
	parent, name, err := d.parentAndName(path)
	if err != nil {
		return nil, err
	}
	return parent.AddArray(ctx, name, b)
}

// DeleteGroup removes the group at path. Deleting "/" recursively erases
// every descendant but keeps the root group itself.
func (d *Dataset) DeleteGroup(ctx context.Context, path string, recursive bool) error {
	if path == "/" {
		root, ok := d.root.(*Group)
		if !ok {
			return fmt.Errorf("%w: root is not a group", ErrNotFound)
		}
		if !recursive && len(root.children) > 0 {
			return fmt.Errorf("%w: /", ErrNotEmpty)
		}
		return root.DeleteAll(ctx)
	}
	if _, err := d.Group(path); err != nil {
		return err
	}
	parent, name, err := d.parentAndName(path)
	if err != nil {
		return err
	}
	return parent.Delete(ctx, name, recursive)
}

// DeleteArray removes the array at path. Deleting a root array converts
// the dataset into one with an empty root group.
func (d *Dataset) DeleteArray(ctx context.Context, path string) error {
	if path == "/" {
		if _, ok := d.root.(*Array); !ok {
			return fmt.Errorf("%w: root is not an array", ErrNotFound)
		}
		if _, err := d.store.ErasePrefix(ctx, ""); err != nil {
			return err
		}
		doc := meta.Group()
		d.root = newGroup(nodeBase{store: d.store, doc: doc, logger: d.logger})
		return nil
	}
	if _, err := d.Array(path); err != nil {
		return err
	}
	parent, name, err := d.parentAndName(path)
	if err != nil {
		return err
	}
	return parent.Delete(ctx, name, false)
}

// Flush persists every dirty chunk and metadata document in the tree.
func (d *Dataset) Flush(ctx context.Context) error {
	var flushErr error
	walk(d.root, func(n Node) {
		if flushErr != nil {
			return
		}
		if a, ok := n.(*Array); ok {
			flushErr = a.Flush(ctx)
			return
		}
		flushErr = n.Save(ctx)
	})
	return flushErr
}

// Close flushes the tree and releases the store. It is the scoped
// replacement for finalizer-driven flushing: call it when done with the
// dataset.
func (d *Dataset) Close(ctx context.Context) error {
	flushErr := d.Flush(ctx)
	if err := d.store.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}
