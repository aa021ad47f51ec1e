package zarr

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/TuSKan/go-zarr/meta"
	"github.com/TuSKan/go-zarr/store"
)

// Node is a hierarchy element: a Group or an Array.
type Node interface {
	// Name is the node's own name; empty for the root.
	Name() string
	// Path is the absolute path from the root, "/" for the root itself.
	Path() string
	// Prefix is the node's key prefix in the store, "" for the root.
	Prefix() string
	// IsGroup distinguishes groups from arrays.
	IsGroup() bool

	// Attributes returns the node's attribute bag. Mutations go through
	// SetAttribute and DeleteAttributes so dirtiness is tracked.
	Attributes() map[string]any
	Attribute(key string) (any, bool)
	SetAttribute(key string, value any)
	DeleteAttributes()

	// Save persists the metadata document when attributes changed.
	Save(ctx context.Context) error

	base() *nodeBase
}

// nodeBase carries the state every node shares: identity, store handle,
// materialized metadata, and the attribute dirty flag.
type nodeBase struct {
	name   string
	parent *Group
	store  store.Store
	doc    *meta.Document
	dirty  bool
	logger *zap.Logger
}

func (n *nodeBase) Name() string { return n.name }

func (n *nodeBase) Path() string {
	if n.parent == nil {
		return "/"
	}
	parentPath := n.parent.Path()
	if parentPath == "/" {
		return "/" + n.name
	}
	return parentPath + "/" + n.name
}

func (n *nodeBase) Prefix() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.Prefix() + n.name + "/"
}

func (n *nodeBase) Attributes() map[string]any {
	return n.doc.Attributes
}

func (n *nodeBase) Attribute(key string) (any, bool) {
	v, ok := n.doc.Attributes[key]
	return v, ok
}

func (n *nodeBase) SetAttribute(key string, value any) {
	if n.doc.Attributes == nil {
		n.doc.Attributes = map[string]any{}
	}
	n.doc.Attributes[key] = value
	n.dirty = true
}

func (n *nodeBase) DeleteAttributes() {
	if len(n.doc.Attributes) == 0 {
		return
	}
	n.doc.Attributes = nil
	n.dirty = true
}

func (n *nodeBase) Save(ctx context.Context) error {
	if !n.dirty {
		return nil
	}
	if err := n.store.SetMetadata(ctx, n.Prefix(), n.doc); err != nil {
		return err
	}
	n.dirty = false
	return nil
}

func (n *nodeBase) base() *nodeBase { return n }

var nameChars = regexp.MustCompile(`^[\p{L}\p{M}\p{N}._-]+$`)

// ValidateName checks a node name: nonempty, not entirely dots, not
// prefixed with a double underscore, and composed of Unicode letters,
// marks, digits, dot, underscore and dash.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Trim(name, ".") == "" {
		return fmt.Errorf("%w: %q is entirely dots", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, "__") {
		return fmt.Errorf("%w: %q starts with a reserved prefix", ErrInvalidName, name)
	}
	if !nameChars.MatchString(name) {
		return fmt.Errorf("%w: %q contains disallowed characters", ErrInvalidName, name)
	}
	return nil
}
