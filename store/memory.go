package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/TuSKan/go-zarr/meta"
)

// Memory keeps the whole hierarchy in a single guarded mapping from key
// to blob. Metadata documents are held in their serialized form so every
// key behaves uniformly. Deletes always succeed.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	sep     string
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemorySeparator overrides the default "." chunk key separator.
func WithMemorySeparator(sep string) MemoryOption {
	return func(m *Memory) { m.sep = sep }
}

// NewMemory returns an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{objects: map[string][]byte{}, sep: "."}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) Capabilities() Capabilities {
	return Capabilities{Writes: true, Deletes: true, Listing: true}
}

func (m *Memory) Separator() string { return m.sep }

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error) {
	m.mu.RLock()
	b, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	part, err := rng.Slice(b)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(part))
	copy(out, part)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, data []byte) error {
	b := make([]byte, len(data))
	copy(b, data)
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) SetIfNotExists(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return nil
	}
	b := make([]byte, len(data))
	copy(b, data)
	m.objects[key] = b
	return nil
}

func (m *Memory) Erase(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return true, nil
}

func (m *Memory) ErasePrefix(ctx context.Context, prefix string) (bool, error) {
	doc, err := meta.Group().Encode()
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	m.objects[MetadataKey(prefix)] = doc
	m.mu.Unlock()
	return true, nil
}

// Clear wipes the mapping entirely.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.objects = map[string][]byte{}
	m.mu.Unlock()
}

func (m *Memory) ListDir(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	for key := range m.objects {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) GetMetadata(ctx context.Context, prefix string) (*meta.Document, error) {
	return readMetadata(ctx, m.rawGet, prefix)
}

func (m *Memory) rawGet(ctx context.Context, key string) ([]byte, error) {
	return m.Get(ctx, key, nil)
}

func (m *Memory) SetMetadata(ctx context.Context, prefix string, doc *meta.Document) error {
	b, err := doc.Encode()
	if err != nil {
		return err
	}
	return m.Set(ctx, MetadataKey(prefix), b)
}

func (m *Memory) CreateGroup(ctx context.Context, parentPrefix, name string) (*meta.Document, error) {
	return createGroup(ctx, m, parentPrefix, name)
}

func (m *Memory) CreateArray(ctx context.Context, parentPrefix, name string, doc *meta.Document) (*meta.Document, error) {
	return createArray(ctx, m, parentPrefix, name, doc)
}

func (m *Memory) Close() error { return nil }
