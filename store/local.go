package store

import (
	"context"
	"fmt"

	"gocloud.dev/blob/fileblob"
)

// Local is a directory-rooted store backed by a fileblob bucket: every
// key is a file path relative to the root, and writes create intermediate
// directories.
type Local struct {
	*Bucket
	root string
}

// CreateLocal initializes an empty local store rooted at dir, creating
// the directory when missing. The caller is expected to write a root
// metadata document next.
func CreateLocal(ctx context.Context, dir string, opts ...BucketOption) (*Local, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %v", ErrStore, dir, err)
	}
	return &Local{Bucket: NewBucket(bucket, opts...), root: dir}, nil
}

// OpenLocal opens an existing local store. The root must already hold a
// node document (zarr.json, or the v2 .zgroup/.zarray pair).
func OpenLocal(ctx context.Context, dir string, opts ...BucketOption) (*Local, error) {
	s, err := CreateLocal(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := s.GetMetadata(ctx, "")
	if err != nil {
		s.Close()
		return nil, err
	}
	if doc == nil {
		s.Close()
		return nil, fmt.Errorf("%w: %q holds no zarr metadata", ErrStore, dir)
	}
	return s, nil
}

// Root returns the store's directory path.
func (l *Local) Root() string { return l.root }
