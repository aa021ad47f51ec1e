package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/TuSKan/go-zarr/meta"
)

const defaultHTTPCacheSize = 256

// HTTP is a read-only store over a base URL. Opening probes, in order, a
// v3 zarr.json, a v2 .zarray, and a v2 .zmetadata consolidated document;
// when consolidated metadata is found the node list is derived from its
// key prefixes. Fetches retry transient failures with exponential backoff
// and recently fetched objects are kept in an LRU cache.
type HTTP struct {
	base         string
	client       *http.Client
	logger       *zap.Logger
	cache        *lru.Cache[string, []byte]
	consolidated *meta.Consolidated
	maxElapsed   time.Duration
	cacheSize    int
}

// HTTPOption configures an HTTP store.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithHTTPLogger attaches a logger.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

// WithHTTPCacheSize sets the object cache capacity; 0 disables caching.
func WithHTTPCacheSize(n int) HTTPOption {
	return func(h *HTTP) { h.cacheSize = n }
}

// WithHTTPRetryWindow bounds the total time spent retrying one fetch.
func WithHTTPRetryWindow(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.maxElapsed = d }
}

// OpenHTTP opens baseURL as a read-only store.
func OpenHTTP(ctx context.Context, baseURL string, opts ...HTTPOption) (*HTTP, error) {
	h := &HTTP{
		base:       strings.TrimSuffix(baseURL, "/") + "/",
		client:     http.DefaultClient,
		logger:     zap.NewNop(),
		maxElapsed: 30 * time.Second,
		cacheSize:  defaultHTTPCacheSize,
	}
	for _, o := range opts {
		o(h)
	}
	if h.cacheSize > 0 {
		cache, err := lru.New[string, []byte](h.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		h.cache = cache
	}

	if b, err := h.fetch(ctx, MetadataName); err != nil {
		return nil, err
	} else if b != nil {
		return h, nil
	}
	if b, err := h.fetch(ctx, ".zarray"); err != nil {
		return nil, err
	} else if b != nil {
		return h, nil
	}
	b, err := h.fetch(ctx, ".zmetadata")
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s holds no zarr metadata", ErrStore, baseURL)
	}
	h.consolidated, err = meta.ParseConsolidated(b)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HTTP) Capabilities() Capabilities {
	return Capabilities{
		ReadOnly:             true,
		Listing:              h.consolidated != nil,
		ConsolidatedMetadata: h.consolidated != nil,
	}
}

func (h *HTTP) Separator() string { return "/" }

// fetch retrieves one object, mapping 404 to nil. Transport errors and
// 5xx responses are retried; other statuses fail immediately.
func (h *HTTP) fetch(ctx context.Context, key string) ([]byte, error) {
	if h.cache != nil {
		if b, ok := h.cache.Get(key); ok {
			return b, nil
		}
	}

	url := h.base + key
	var body []byte
	found := false
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrStore, err))
		}
		resp, err := h.client.Do(req)
		if err != nil {
			h.logger.Debug("retrying fetch", zap.String("url", url), zap.Error(err))
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			found = true
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return nil
		case resp.StatusCode >= 500:
			h.logger.Debug("retrying fetch", zap.String("url", url), zap.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: GET %s: status %d", ErrStore, url, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: GET %s: status %d", ErrStore, url, resp.StatusCode))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = h.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrStore, url, err)
	}
	if !found {
		return nil, nil
	}
	if h.cache != nil {
		h.cache.Add(key, body)
	}
	return body, nil
}

func (h *HTTP) Exists(ctx context.Context, key string) (bool, error) {
	b, err := h.fetch(ctx, key)
	return b != nil, err
}

// Get always fetches the whole object; a byte range is applied to the
// fetched body.
func (h *HTTP) Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error) {
	b, err := h.fetch(ctx, key)
	if err != nil || b == nil {
		return nil, err
	}
	return rng.Slice(b)
}

func (h *HTTP) Set(ctx context.Context, key string, data []byte) error { return ErrReadOnly }

func (h *HTTP) SetIfNotExists(ctx context.Context, key string, data []byte) error {
	return ErrReadOnly
}

func (h *HTTP) Erase(ctx context.Context, key string) (bool, error) { return false, nil }

func (h *HTTP) ErasePrefix(ctx context.Context, prefix string) (bool, error) { return false, nil }

func (h *HTTP) ListDir(ctx context.Context, prefix string) ([]string, error) {
	if h.consolidated == nil {
		return nil, fmt.Errorf("%w: listing requires consolidated metadata", ErrStore)
	}
	seen := map[string]bool{}
	for _, p := range h.consolidated.Prefixes() {
		if p == prefix || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimSuffix(p[len(prefix):], "/")
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (h *HTTP) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	if h.consolidated == nil {
		return nil, fmt.Errorf("%w: listing requires consolidated metadata", ErrStore)
	}
	var out []string
	for key := range h.consolidated.Metadata {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (h *HTTP) GetMetadata(ctx context.Context, prefix string) (*meta.Document, error) {
	if h.consolidated != nil {
		return h.consolidated.Document(prefix)
	}
	return readMetadata(ctx, h.fetch, prefix)
}

func (h *HTTP) SetMetadata(ctx context.Context, prefix string, doc *meta.Document) error {
	return ErrReadOnly
}

func (h *HTTP) CreateGroup(ctx context.Context, parentPrefix, name string) (*meta.Document, error) {
	return nil, ErrReadOnly
}

func (h *HTTP) CreateArray(ctx context.Context, parentPrefix, name string, doc *meta.Document) (*meta.Document, error) {
	return nil, ErrReadOnly
}

func (h *HTTP) Close() error { return nil }
