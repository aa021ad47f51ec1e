package meta

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/dtype"
)

// Zarr v2 documents are read-only inputs: each is translated into the v3
// Document shape on load and never written back.

type v2Compressor struct {
	ID        string `json:"id"`
	Cname     string `json:"cname,omitempty"`
	Clevel    *int   `json:"clevel,omitempty"`
	Shuffle   *int   `json:"shuffle,omitempty"`
	Blocksize int    `json:"blocksize,omitempty"`
	Level     *int   `json:"level,omitempty"`
}

type v2Array struct {
	ZarrFormat         int             `json:"zarr_format"`
	Shape              []int           `json:"shape"`
	Chunks             []int           `json:"chunks"`
	DType              string          `json:"dtype"`
	Compressor         *v2Compressor   `json:"compressor"`
	FillValue          any             `json:"fill_value"`
	Order              string          `json:"order"`
	Filters            json.RawMessage `json:"filters"`
	DimensionSeparator string          `json:"dimension_separator"`
}

type v2Group struct {
	ZarrFormat int `json:"zarr_format"`
}

// ParseV2Group reads a .zgroup document, merging attributes from an
// optional .zattrs document.
func ParseV2Group(zgroup, zattrs []byte) (*Document, error) {
	var g v2Group
	if err := json.Unmarshal(zgroup, &g); err != nil {
		return nil, fmt.Errorf("%w: .zgroup: %v", ErrInvalidMetadata, err)
	}
	if g.ZarrFormat != 2 {
		return nil, fmt.Errorf("%w: .zgroup zarr_format %d, want 2", ErrInvalidMetadata, g.ZarrFormat)
	}
	doc := Group()
	if len(zattrs) > 0 {
		if err := json.Unmarshal(zattrs, &doc.Attributes); err != nil {
			return nil, fmt.Errorf("%w: .zattrs: %v", ErrInvalidMetadata, err)
		}
	}
	return doc, nil
}

// ParseV2Array reads a .zarray document, merging attributes from an
// optional .zattrs document, and translates it into the v3 shape: the
// numpy dtype string becomes a v3 data type plus a bytes codec with the
// matching endianness, column-major order becomes a transpose codec, and
// the compressor becomes the equivalent v3 codec.
func ParseV2Array(zarray, zattrs []byte) (*Document, error) {
	var a v2Array
	if err := json.Unmarshal(zarray, &a); err != nil {
		return nil, fmt.Errorf("%w: .zarray: %v", ErrInvalidMetadata, err)
	}
	if a.ZarrFormat != 2 {
		return nil, fmt.Errorf("%w: .zarray zarr_format %d, want 2", ErrInvalidMetadata, a.ZarrFormat)
	}
	if len(a.Shape) != len(a.Chunks) {
		return nil, fmt.Errorf("%w: .zarray chunks rank %d does not match shape rank %d",
			ErrInvalidMetadata, len(a.Chunks), len(a.Shape))
	}
	if len(a.Filters) > 0 && string(a.Filters) != "null" && string(a.Filters) != "[]" {
		return nil, fmt.Errorf("%w: v2 filters are not supported", ErrInvalidMetadata)
	}

	dt, order, err := dtype.ParseV2(a.DType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	doc := &Document{
		ZarrFormat:   3,
		NodeType:     NodeArray,
		Shape:        a.Shape,
		DataType:     dt,
		ChunkShape:   a.Chunks,
		KeyEncoding:  KeyEncodingV2,
		KeySeparator: ".",
	}
	if a.DimensionSeparator == "/" {
		doc.KeySeparator = "/"
	}

	if a.FillValue == nil {
		doc.FillValue = dt.DefaultFill()
	} else {
		fill, err := dtype.ParseScalarJSON(dt, a.FillValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		doc.FillValue = fill
	}

	if a.Order == "F" && len(a.Shape) >= 2 {
		rev := make([]int, len(a.Shape))
		for i := range rev {
			rev[i] = len(rev) - 1 - i
		}
		doc.Codecs = append(doc.Codecs, codec.Spec{
			Name:          "transpose",
			Configuration: map[string]any{"order": rev},
		})
	}

	endian := "little"
	if order == binary.BigEndian {
		endian = "big"
	}
	bytesCfg := map[string]any{"endian": endian}
	if dt.Size() == 1 {
		bytesCfg = nil
	}
	doc.Codecs = append(doc.Codecs, codec.Spec{Name: "bytes", Configuration: bytesCfg})

	if a.Compressor != nil {
		spec, err := translateV2Compressor(a.Compressor)
		if err != nil {
			return nil, err
		}
		doc.Codecs = append(doc.Codecs, spec)
	}

	if len(zattrs) > 0 {
		if err := json.Unmarshal(zattrs, &doc.Attributes); err != nil {
			return nil, fmt.Errorf("%w: .zattrs: %v", ErrInvalidMetadata, err)
		}
	}
	return doc, nil
}

func translateV2Compressor(c *v2Compressor) (codec.Spec, error) {
	switch c.ID {
	case "zlib", "gzip":
		level := 6
		if c.Level != nil {
			level = *c.Level
		}
		return codec.Spec{Name: "gzip", Configuration: map[string]any{"level": level}}, nil
	case "zstd":
		level := 1
		if c.Level != nil {
			level = *c.Level
		}
		return codec.Spec{Name: "zstd", Configuration: map[string]any{"level": level}}, nil
	case "blosc":
		cfg := map[string]any{}
		if c.Cname != "" {
			cfg["cname"] = c.Cname
		}
		if c.Clevel != nil {
			cfg["clevel"] = *c.Clevel
		}
		if c.Shuffle != nil {
			switch *c.Shuffle {
			case 0:
				cfg["shuffle"] = codec.ShuffleNone
			case 1:
				cfg["shuffle"] = codec.ShuffleByte
			case 2:
				cfg["shuffle"] = codec.ShuffleBit
			default:
				return codec.Spec{}, fmt.Errorf("%w: blosc shuffle %d", ErrInvalidMetadata, *c.Shuffle)
			}
		}
		if c.Blocksize > 0 {
			cfg["blocksize"] = c.Blocksize
		}
		return codec.Spec{Name: "blosc", Configuration: cfg}, nil
	}
	return codec.Spec{}, fmt.Errorf("%w: unsupported v2 compressor %q", ErrInvalidMetadata, c.ID)
}

// Consolidated is a parsed v2 .zmetadata document: every node document of
// the hierarchy keyed by its relative metadata path.
type Consolidated struct {
	Metadata map[string]json.RawMessage
}

type wireConsolidated struct {
	Format   int                        `json:"zarr_consolidated_format"`
	Metadata map[string]json.RawMessage `json:"metadata"`
}

// ParseConsolidated reads a .zmetadata document.
func ParseConsolidated(b []byte) (*Consolidated, error) {
	var w wireConsolidated
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: .zmetadata: %v", ErrInvalidMetadata, err)
	}
	if w.Format != 1 {
		return nil, fmt.Errorf("%w: zarr_consolidated_format %d, want 1", ErrInvalidMetadata, w.Format)
	}
	if w.Metadata == nil {
		return nil, fmt.Errorf("%w: .zmetadata without metadata mapping", ErrInvalidMetadata)
	}
	return &Consolidated{Metadata: w.Metadata}, nil
}

// Prefixes derives the node list from the metadata keys: one entry per
// unique prefix, "" for the root, each non-root prefix ending in "/".
func (c *Consolidated) Prefixes() []string {
	seen := map[string]bool{}
	for key := range c.Metadata {
		name := key
		if i := strings.LastIndex(key, "/"); i >= 0 {
			name = key[i+1:]
		}
		switch name {
		case ".zgroup", ".zarray", ".zattrs":
		default:
			continue
		}
		prefix := strings.TrimSuffix(key, name)
		seen[prefix] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Document assembles the node document for a prefix ("" for root) from
// the consolidated mapping, or nil when the prefix holds no node.
func (c *Consolidated) Document(prefix string) (*Document, error) {
	zattrs := c.Metadata[prefix+".zattrs"]
	if zarray, ok := c.Metadata[prefix+".zarray"]; ok {
		return ParseV2Array(zarray, zattrs)
	}
	if zgroup, ok := c.Metadata[prefix+".zgroup"]; ok {
		return ParseV2Group(zgroup, zattrs)
	}
	return nil, nil
}
