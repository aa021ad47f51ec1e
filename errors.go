package zarr

import "errors"

var (
	// ErrNotFound reports a path or key that was required to exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName reports an attempt to add a child under a taken name.
	ErrDuplicateName = errors.New("duplicate child name")
	// ErrNotEmpty reports a non-recursive delete of a populated group.
	ErrNotEmpty = errors.New("group is not empty")
	// ErrInvalidName reports a node name outside the allowed character set.
	ErrInvalidName = errors.New("invalid node name")
	// ErrShapeMismatch reports host data whose rank or extent disagrees
	// with the array.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrTypeMismatch reports host data of the wrong element type.
	ErrTypeMismatch = errors.New("type mismatch")
)
