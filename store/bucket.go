package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/TuSKan/go-zarr/meta"
)

// Bucket adapts any gocloud blob bucket into a Store. The local
// filesystem backend is a fileblob bucket; OpenBucket accepts every URL
// scheme a registered blob driver understands.
type Bucket struct {
	bucket *blob.Bucket
	sep    string
	logger *zap.Logger
}

// BucketOption configures a Bucket store.
type BucketOption func(*Bucket)

// WithBucketSeparator overrides the default "/" chunk key separator.
func WithBucketSeparator(sep string) BucketOption {
	return func(b *Bucket) { b.sep = sep }
}

// WithBucketLogger attaches a logger.
func WithBucketLogger(l *zap.Logger) BucketOption {
	return func(b *Bucket) { b.logger = l }
}

// OpenBucket opens a bucket URL (mem://, file://, s3://, ...) as a Store.
func OpenBucket(ctx context.Context, url string, opts ...BucketOption) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bucket: %v", ErrStore, err)
	}
	return NewBucket(bucket, opts...), nil
}

// NewBucket wraps an already-open bucket. The store takes ownership and
// closes it on Close.
func NewBucket(bucket *blob.Bucket, opts ...BucketOption) *Bucket {
	b := &Bucket{bucket: bucket, sep: "/", logger: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bucket) Capabilities() Capabilities {
	return Capabilities{Writes: true, Deletes: true, Listing: true}
}

func (b *Bucket) Separator() string { return b.sep }

func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := b.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return ok, nil
}

func (b *Bucket) Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error) {
	if rng == nil {
		data, err := b.bucket.ReadAll(ctx, key)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: reading %q: %v", ErrStore, key, err)
		}
		return data, nil
	}

	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %q: %v", ErrStore, key, err)
	}
	offset, length, err := rng.Resolve(attrs.Size)
	if err != nil {
		return nil, err
	}
	r, err := b.bucket.NewRangeReader(ctx, key, offset, length, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %q: %v", ErrStore, key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %q: %v", ErrStore, key, err)
	}
	return data, nil
}

func (b *Bucket) Set(ctx context.Context, key string, data []byte) error {
	if err := b.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("%w: writing %q: %v", ErrStore, key, err)
	}
	return nil
}

func (b *Bucket) SetIfNotExists(ctx context.Context, key string, data []byte) error {
	ok, err := b.Exists(ctx, key)
	if err != nil || ok {
		return err
	}
	return b.Set(ctx, key, data)
}

// Erase removes a single object. It refuses when any descendant exists
// under the key, so populated subtrees cannot be removed by accident.
func (b *Bucket) Erase(ctx context.Context, key string) (bool, error) {
	children, err := b.ListPrefix(ctx, key+"/")
	if err != nil {
		return false, err
	}
	if len(children) > 0 {
		return false, nil
	}
	err = b.bucket.Delete(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("%w: deleting %q: %v", ErrStore, key, err)
	}
	return true, nil
}

func (b *Bucket) ErasePrefix(ctx context.Context, prefix string) (bool, error) {
	keys, err := b.ListPrefix(ctx, prefix)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		if err := b.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return false, fmt.Errorf("%w: deleting %q: %v", ErrStore, key, err)
		}
	}
	if err := b.SetMetadata(ctx, prefix, meta.Group()); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Bucket) ListDir(ctx context.Context, prefix string) ([]string, error) {
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var out []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: listing %q: %v", ErrStore, prefix, err)
		}
		name := strings.TrimSuffix(obj.Key[len(prefix):], "/")
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *Bucket) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	var out []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: listing %q: %v", ErrStore, prefix, err)
		}
		out = append(out, obj.Key)
	}
	sort.Strings(out)
	return out, nil
}

func (b *Bucket) GetMetadata(ctx context.Context, prefix string) (*meta.Document, error) {
	return readMetadata(ctx, b.rawGet, prefix)
}

func (b *Bucket) rawGet(ctx context.Context, key string) ([]byte, error) {
	return b.Get(ctx, key, nil)
}

func (b *Bucket) SetMetadata(ctx context.Context, prefix string, doc *meta.Document) error {
	enc, err := doc.Encode()
	if err != nil {
		return err
	}
	return b.Set(ctx, MetadataKey(prefix), enc)
}

func (b *Bucket) CreateGroup(ctx context.Context, parentPrefix, name string) (*meta.Document, error) {
	return createGroup(ctx, b, parentPrefix, name)
}

func (b *Bucket) CreateArray(ctx context.Context, parentPrefix, name string, doc *meta.Document) (*meta.Document, error) {
	return createArray(ctx, b, parentPrefix, name, doc)
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}
