package codec

import (
	"errors"
	"fmt"

	"github.com/TuSKan/go-zarr/nd"
)

// ErrInvalidChain reports a codec list that does not form a valid
// array-to-bytes chain.
var ErrInvalidChain = errors.New("invalid codec chain")

// Pipeline is a validated ordered codec list. A valid chain starts in the
// array domain, ends in the bytes domain, and every stage's output domain
// matches the next stage's input domain. That shape admits an optional
// array-to-array prefix, exactly one array-to-bytes transition, and any
// number of trailing bytes-to-bytes stages.
type Pipeline struct {
	codecs []Codec
}

// NewPipeline validates the chain and wraps it.
func NewPipeline(codecs ...Codec) (*Pipeline, error) {
	if err := validateChain(codecs); err != nil {
		return nil, err
	}
	return &Pipeline{codecs: codecs}, nil
}

// FromSpecs constructs every codec in specs and validates the chain. The
// chunk shape is threaded through the array-to-array prefix so the
// array-to-bytes transition decodes to the shape it actually sees.
func FromSpecs(specs []Spec, cx Context) (*Pipeline, error) {
	codecs := make([]Codec, len(specs))
	for i, s := range specs {
		c, err := New(s, cx)
		if err != nil {
			return nil, err
		}
		codecs[i] = c
		if st, ok := c.(shapeTransformer); ok {
			cx.ChunkShape = st.EncodedShape(cx.ChunkShape)
		}
	}
	return NewPipeline(codecs...)
}

func validateChain(codecs []Codec) error {
	if len(codecs) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidChain)
	}
	if codecs[0].From() != DomainArray {
		return fmt.Errorf("%w: first codec %q consumes %s, want array",
			ErrInvalidChain, codecs[0].Name(), codecs[0].From())
	}
	last := codecs[len(codecs)-1]
	if last.To() != DomainBytes {
		return fmt.Errorf("%w: last codec %q produces %s, want bytes",
			ErrInvalidChain, last.Name(), last.To())
	}
	for i := 0; i < len(codecs)-1; i++ {
		if codecs[i].To() != codecs[i+1].From() {
			return fmt.Errorf("%w: %q produces %s but %q consumes %s",
				ErrInvalidChain, codecs[i].Name(), codecs[i].To(),
				codecs[i+1].Name(), codecs[i+1].From())
		}
	}
	return nil
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.codecs) }

// Codecs returns the stages in order. The caller must not mutate the slice.
func (p *Pipeline) Codecs() []Codec { return p.codecs }

// Names returns the stage names in order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.codecs))
	for i, c := range p.codecs {
		out[i] = c.Name()
	}
	return out
}

// Specs returns the metadata form of the chain.
func (p *Pipeline) Specs() []Spec {
	out := make([]Spec, len(p.codecs))
	for i, c := range p.codecs {
		out[i] = Spec{Name: c.Name(), Configuration: c.Config()}
	}
	return out
}

// Index returns the position of the first stage with the given name, or -1.
func (p *Pipeline) Index(name string) int {
	for i, c := range p.codecs {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// Insert places c at position pos. The insertion is refused when the
// resulting chain would be invalid.
func (p *Pipeline) Insert(pos int, c Codec) error {
	if pos < 0 || pos > len(p.codecs) {
		return fmt.Errorf("%w: position %d out of range", ErrInvalidChain, pos)
	}
	next := make([]Codec, 0, len(p.codecs)+1)
	next = append(next, p.codecs[:pos]...)
	next = append(next, c)
	next = append(next, p.codecs[pos:]...)
	if err := validateChain(next); err != nil {
		return err
	}
	p.codecs = next
	return nil
}

// RemoveAt drops the stage at pos, refusing when the shortened chain would
// be invalid.
func (p *Pipeline) RemoveAt(pos int) error {
	if pos < 0 || pos >= len(p.codecs) {
		return fmt.Errorf("%w: position %d out of range", ErrInvalidChain, pos)
	}
	next := make([]Codec, 0, len(p.codecs)-1)
	next = append(next, p.codecs[:pos]...)
	next = append(next, p.codecs[pos+1:]...)
	if err := validateChain(next); err != nil {
		return err
	}
	p.codecs = next
	return nil
}

// Remove drops the first stage with the given name.
func (p *Pipeline) Remove(name string) error {
	i := p.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: no codec named %q", ErrInvalidChain, name)
	}
	return p.RemoveAt(i)
}

// Encode runs the chain forward, turning a chunk array into stored bytes.
func (p *Pipeline) Encode(a *nd.Array) ([]byte, error) {
	v := ArrayValue(a)
	for _, c := range p.codecs {
		var err error
		v, err = c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encoding through %q: %w", c.Name(), err)
		}
	}
	return v.Bytes()
}

// Decode runs the chain backward, turning stored bytes into a chunk array.
func (p *Pipeline) Decode(b []byte) (*nd.Array, error) {
	v := BytesValue(b)
	for i := len(p.codecs) - 1; i >= 0; i-- {
		var err error
		v, err = p.codecs[i].Decode(v)
		if err != nil {
			return nil, fmt.Errorf("decoding through %q: %w", p.codecs[i].Name(), err)
		}
	}
	return v.Array()
}

// Copy clones every stage so the copy shares no codec state with the
// original. Chunk units each own a copy, which keeps a future parallel
// chunk path free of shared compressor contexts.
func (p *Pipeline) Copy() *Pipeline {
	codecs := make([]Codec, len(p.codecs))
	for i, c := range p.codecs {
		codecs[i] = c.Copy()
	}
	return &Pipeline{codecs: codecs}
}
