// Package store abstracts key-to-byte-blob persistence for Zarr
// hierarchies: object reads and writes, directory-like listing, and the
// metadata document lifecycle. Backends cover an in-process map, local
// directories and generic gocloud buckets, and read-only HTTP.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/TuSKan/go-zarr/meta"
)

var (
	// ErrStore reports a backend I/O fault.
	ErrStore = errors.New("store error")
	// ErrReadOnly reports a mutation on a read-only store.
	ErrReadOnly = errors.New("store is read-only")
	// ErrInvalidRange reports a contradictory byte range.
	ErrInvalidRange = errors.New("invalid byte range")
)

// MetadataName is the document name of a v3 node within its prefix.
const MetadataName = "zarr.json"

// Capabilities describes what a backend supports.
type Capabilities struct {
	ReadOnly             bool
	Writes               bool
	Deletes              bool
	Listing              bool
	ConsolidatedMetadata bool
}

// ByteRange selects part of an object. The zero of *ByteRange (nil)
// selects the whole object.
type ByteRange struct {
	start  int64
	end    int64
	suffix bool
	bound  bool
}

// From selects everything from offset to the end.
func From(offset int64) *ByteRange {
	return &ByteRange{start: offset}
}

// Suffix selects the final n bytes.
func Suffix(n int64) *ByteRange {
	return &ByteRange{start: n, suffix: true}
}

// Between selects [start, end).
func Between(start, end int64) *ByteRange {
	return &ByteRange{start: start, end: end, bound: true}
}

// Resolve turns the range into a concrete offset and length against an
// object of the given size.
func (r *ByteRange) Resolve(size int64) (int64, int64, error) {
	if r == nil {
		return 0, size, nil
	}
	if r.suffix {
		if r.start <= 0 {
			return 0, 0, fmt.Errorf("%w: empty suffix", ErrInvalidRange)
		}
		start := size - r.start
		if start < 0 {
			start = 0
		}
		return start, size - start, nil
	}
	if r.start < 0 || r.start >= size {
		return 0, 0, fmt.Errorf("%w: start %d outside object of %d bytes", ErrInvalidRange, r.start, size)
	}
	end := size
	if r.bound {
		if r.end <= r.start {
			return 0, 0, fmt.Errorf("%w: empty range [%d, %d)", ErrInvalidRange, r.start, r.end)
		}
		if r.end < end {
			end = r.end
		}
	}
	return r.start, end - r.start, nil
}

// Slice applies the range to an already-fetched object.
func (r *ByteRange) Slice(b []byte) ([]byte, error) {
	offset, length, err := r.Resolve(int64(len(b)))
	if err != nil {
		return nil, err
	}
	return b[offset : offset+length], nil
}

// Store is the persistence interface every backend implements. Get
// returns nil for an absent key rather than an error; on read-only
// backends the set and create mutators fail with ErrReadOnly, while Erase
// and ErasePrefix report (false, nil).
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	SetIfNotExists(ctx context.Context, key string, data []byte) error

	// Erase removes a single key. Bucket-backed stores refuse (false, nil)
	// when descendants exist under the key; the memory store deletes
	// unconditionally. ErasePrefix removes every descendant of prefix
	// but preserves the node at the prefix itself by rewriting a minimal
	// group document.
	Erase(ctx context.Context, key string) (bool, error)
	ErasePrefix(ctx context.Context, prefix string) (bool, error)

	// ListDir returns the immediate child names under prefix; ListPrefix
	// returns every descendant key.
	ListDir(ctx context.Context, prefix string) ([]string, error)
	ListPrefix(ctx context.Context, prefix string) ([]string, error)

	// GetMetadata returns the node document at prefix normalized to the v3
	// representation regardless of the on-disk format, or nil when no node
	// exists there.
	GetMetadata(ctx context.Context, prefix string) (*meta.Document, error)
	SetMetadata(ctx context.Context, prefix string, doc *meta.Document) error
	CreateGroup(ctx context.Context, parentPrefix, name string) (*meta.Document, error)
	CreateArray(ctx context.Context, parentPrefix, name string, doc *meta.Document) (*meta.Document, error)

	Capabilities() Capabilities

	// Separator is the default chunk key separator for arrays created on
	// this store.
	Separator() string

	Close() error
}

// ChildPrefix derives a child node's prefix from its parent's.
func ChildPrefix(parentPrefix, name string) string {
	return parentPrefix + name + "/"
}

// MetadataKey returns the v3 document key for a node prefix.
func MetadataKey(prefix string) string {
	return prefix + MetadataName
}

// getFunc adapts a backend's raw read for the shared metadata logic.
type getFunc func(ctx context.Context, key string) ([]byte, error)

// readMetadata implements the store-independent metadata lookup: a v3
// zarr.json wins, otherwise the v2 documents are translated, with .zattrs
// merged into the result.
func readMetadata(ctx context.Context, get getFunc, prefix string) (*meta.Document, error) {
	b, err := get(ctx, MetadataKey(prefix))
	if err != nil {
		return nil, err
	}
	if b != nil {
		return meta.Parse(b)
	}

	zattrs, err := get(ctx, prefix+".zattrs")
	if err != nil {
		return nil, err
	}
	zarray, err := get(ctx, prefix+".zarray")
	if err != nil {
		return nil, err
	}
	if zarray != nil {
		return meta.ParseV2Array(zarray, zattrs)
	}
	zgroup, err := get(ctx, prefix+".zgroup")
	if err != nil {
		return nil, err
	}
	if zgroup != nil {
		return meta.ParseV2Group(zgroup, zattrs)
	}
	return nil, nil
}

// createGroup and createArray implement the shared node-creation shape on
// top of a writable backend.
func createGroup(ctx context.Context, s Store, parentPrefix, name string) (*meta.Document, error) {
	doc := meta.Group()
	if err := s.SetMetadata(ctx, ChildPrefix(parentPrefix, name), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func createArray(ctx context.Context, s Store, parentPrefix, name string, doc *meta.Document) (*meta.Document, error) {
	if doc == nil || !doc.IsArray() {
		return nil, fmt.Errorf("%w: array creation requires an array document", meta.ErrInvalidMetadata)
	}
	if err := s.SetMetadata(ctx, ChildPrefix(parentPrefix, name), doc); err != nil {
		return nil, err
	}
	return doc, nil
}
