// Package meta models the JSON metadata documents that describe groups
// and arrays: the Zarr v3 zarr.json shape, plus read-only translation of
// Zarr v2 documents (.zgroup, .zarray, .zattrs, .zmetadata) into that
// shape.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/dtype"
)

// ErrInvalidMetadata reports a malformed or unsupported metadata document.
var ErrInvalidMetadata = errors.New("invalid metadata")

const (
	NodeGroup = "group"
	NodeArray = "array"

	// KeyEncodingDefault writes chunk keys as "c" + sep + coords; KeyEncodingV2
	// omits the "c" prefix.
	KeyEncodingDefault = "default"
	KeyEncodingV2      = "v2"
)

// Document is a node's metadata, normalized to the v3 representation
// regardless of the on-disk format it was read from. Group documents only
// populate NodeType and Attributes.
type Document struct {
	ZarrFormat int
	NodeType   string

	// Array fields.
	Shape        []int
	DataType     dtype.DataType
	FillValue    any // native scalar of DataType
	ChunkShape   []int
	KeyEncoding  string
	KeySeparator string
	Codecs       []codec.Spec

	Attributes map[string]any
}

// Group returns a fresh v3 group document.
func Group() *Document {
	return &Document{ZarrFormat: 3, NodeType: NodeGroup}
}

// IsArray reports whether the document describes an array node.
func (d *Document) IsArray() bool { return d.NodeType == NodeArray }

// Rank returns the array's dimensionality.
func (d *Document) Rank() int { return len(d.Shape) }

type wireGrid struct {
	Name          string `json:"name"`
	Configuration struct {
		ChunkShape []int `json:"chunk_shape"`
	} `json:"configuration"`
}

type wireKeyEncoding struct {
	Name          string `json:"name"`
	Configuration struct {
		Separator string `json:"separator,omitempty"`
	} `json:"configuration,omitempty"`
}

type wireDoc struct {
	ZarrFormat       int              `json:"zarr_format"`
	NodeType         string           `json:"node_type"`
	Shape            []int            `json:"shape,omitempty"`
	DataType         string           `json:"data_type,omitempty"`
	FillValue        any              `json:"fill_value,omitempty"`
	ChunkGrid        *wireGrid        `json:"chunk_grid,omitempty"`
	ChunkKeyEncoding *wireKeyEncoding `json:"chunk_key_encoding,omitempty"`
	Codecs           []codec.Spec     `json:"codecs,omitempty"`
	Attributes       map[string]any   `json:"attributes,omitempty"`
}

// MarshalJSON renders the document in the v3 wire shape.
func (d *Document) MarshalJSON() ([]byte, error) {
	w := wireDoc{
		ZarrFormat: 3,
		NodeType:   d.NodeType,
		Attributes: d.Attributes,
	}
	if d.IsArray() {
		w.Shape = d.Shape
		w.DataType = d.DataType.String()
		w.FillValue = dtype.ScalarJSON(d.FillValue)
		w.ChunkGrid = &wireGrid{Name: "regular"}
		w.ChunkGrid.Configuration.ChunkShape = d.ChunkShape
		enc := &wireKeyEncoding{Name: d.KeyEncoding}
		if enc.Name == "" {
			enc.Name = KeyEncodingDefault
		}
		enc.Configuration.Separator = d.KeySeparator
		w.ChunkKeyEncoding = enc
		w.Codecs = d.Codecs
	}
	return json.Marshal(w)
}

// Encode serializes the document.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "    ")
}

// Parse reads a v3 zarr.json document.
func Parse(b []byte) (*Document, error) {
	var w wireDoc
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if w.ZarrFormat != 3 {
		return nil, fmt.Errorf("%w: zarr_format %d, want 3", ErrInvalidMetadata, w.ZarrFormat)
	}
	doc := &Document{
		ZarrFormat: 3,
		NodeType:   w.NodeType,
		Attributes: w.Attributes,
	}
	switch w.NodeType {
	case NodeGroup:
		return doc, nil
	case NodeArray:
	default:
		return nil, fmt.Errorf("%w: unknown node_type %q", ErrInvalidMetadata, w.NodeType)
	}

	if len(w.Shape) == 0 && w.ChunkGrid == nil {
		return nil, fmt.Errorf("%w: array document without shape", ErrInvalidMetadata)
	}
	dt, err := dtype.Parse(w.DataType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	doc.Shape = w.Shape
	doc.DataType = dt
	if w.FillValue == nil {
		doc.FillValue = dt.DefaultFill()
	} else {
		fill, err := dtype.ParseScalarJSON(dt, w.FillValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		doc.FillValue = fill
	}

	if w.ChunkGrid == nil || w.ChunkGrid.Name != "regular" {
		return nil, fmt.Errorf("%w: only the regular chunk grid is supported", ErrInvalidMetadata)
	}
	doc.ChunkShape = w.ChunkGrid.Configuration.ChunkShape
	if len(doc.ChunkShape) != len(doc.Shape) {
		return nil, fmt.Errorf("%w: chunk shape rank %d does not match shape rank %d",
			ErrInvalidMetadata, len(doc.ChunkShape), len(doc.Shape))
	}
	for i := range doc.Shape {
		if doc.Shape[i] < 1 || doc.ChunkShape[i] < 1 {
			return nil, fmt.Errorf("%w: non-positive extent in dimension %d", ErrInvalidMetadata, i)
		}
	}

	doc.KeyEncoding = KeyEncodingDefault
	doc.KeySeparator = "/"
	if w.ChunkKeyEncoding != nil {
		switch w.ChunkKeyEncoding.Name {
		case KeyEncodingDefault, KeyEncodingV2:
			doc.KeyEncoding = w.ChunkKeyEncoding.Name
		default:
			return nil, fmt.Errorf("%w: unknown chunk key encoding %q", ErrInvalidMetadata, w.ChunkKeyEncoding.Name)
		}
		if sep := w.ChunkKeyEncoding.Configuration.Separator; sep != "" {
			if sep != "." && sep != "/" {
				return nil, fmt.Errorf("%w: chunk key separator %q", ErrInvalidMetadata, sep)
			}
			doc.KeySeparator = sep
		} else if doc.KeyEncoding == KeyEncodingV2 {
			doc.KeySeparator = "."
		}
	}

	if len(w.Codecs) == 0 {
		return nil, fmt.Errorf("%w: array document without codecs", ErrInvalidMetadata)
	}
	doc.Codecs = w.Codecs
	return doc, nil
}
