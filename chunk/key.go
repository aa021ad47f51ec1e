// Package chunk maps array coordinates onto chunk coordinates and drives
// per-chunk read-modify-write I/O through a codec pipeline.
package chunk

import (
	"strconv"
	"strings"

	"github.com/TuSKan/go-zarr/meta"
)

// KeyEncoding is an array's chunk naming policy: the v3 default scheme
// prefixes coordinates with "c", the v2-style scheme joins bare
// coordinates.
type KeyEncoding struct {
	Name      string
	Separator string
}

// DefaultEncoding returns the v3 default scheme with the given separator.
func DefaultEncoding(sep string) KeyEncoding {
	return KeyEncoding{Name: meta.KeyEncodingDefault, Separator: sep}
}

// V2Encoding returns the v2-style scheme with the given separator.
func V2Encoding(sep string) KeyEncoding {
	return KeyEncoding{Name: meta.KeyEncodingV2, Separator: sep}
}

// Key forms the store key for the chunk at the given coordinates under an
// array prefix. A rank-0 array stores its single chunk as "c" under the
// default scheme and "0" under the v2 scheme.
func (e KeyEncoding) Key(prefix string, coords []int) string {
	sep := e.Separator
	if sep == "" {
		sep = "/"
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	if e.Name == meta.KeyEncodingV2 {
		if len(coords) == 0 {
			sb.WriteString("0")
			return sb.String()
		}
		for i, c := range coords {
			if i > 0 {
				sb.WriteString(sep)
			}
			sb.WriteString(strconv.Itoa(c))
		}
		return sb.String()
	}

	sb.WriteString("c")
	for _, c := range coords {
		sb.WriteString(sep)
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}
