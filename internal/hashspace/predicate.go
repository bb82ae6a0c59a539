// Package hashspace builds and encodes the search predicates sent in
// REQ_SEARCH_START payloads. The cluster itself evaluates predicates
// against a multidimensional hyperspace hash; this package only builds
// the wire-level constraint set and validates it against the BADSEARCH
// rules: dimension 0 (the key) may never carry an equality constraint,
// a dimension name may not appear in both the equality and range sets,
// and every name must resolve against the space's dimension list.
package hashspace

import (
	"fmt"

	"github.com/dreamware/hxc/internal/wire"
)

// Range is an inclusive-low, exclusive-high u64 interval constraint on
// one dimension.
type Range struct {
	Low  uint64
	High uint64
}

// Predicate is a validated, dimension-index-resolved search constraint
// set ready for wire encoding.
type Predicate struct {
	Equality map[int][]byte
	Ranges   map[int]Range
}

// ErrBadSearch reports a predicate that violates a search validation
// rule.
type ErrBadSearch struct {
	Reason string
}

func (e *ErrBadSearch) Error() string {
	return fmt.Sprintf("hashspace: bad search: %s", e.Reason)
}

// Build resolves a caller's name-keyed equality and range constraints
// against a space's dimension list and validates them. Dimensions[0]
// is always the key and can never carry an equality constraint. A name
// present in both maps, or a name absent from dimensions, fails
// validation.
func Build(dimensions []string, equality map[string][]byte, ranges map[string]Range) (*Predicate, error) {
	index := make(map[string]int, len(dimensions))
	for i, name := range dimensions {
		index[name] = i
	}

	p := &Predicate{
		Equality: make(map[int][]byte, len(equality)),
		Ranges:   make(map[int]Range, len(ranges)),
	}

	for name, val := range equality {
		idx, ok := index[name]
		if !ok {
			return nil, &ErrBadSearch{Reason: fmt.Sprintf("unknown dimension %q", name)}
		}
		if idx == 0 {
			return nil, &ErrBadSearch{Reason: "equality constraint on the key dimension"}
		}
		if _, dup := ranges[name]; dup {
			return nil, &ErrBadSearch{Reason: fmt.Sprintf("dimension %q constrained by both equality and range", name)}
		}
		p.Equality[idx] = val
	}

	for name, r := range ranges {
		idx, ok := index[name]
		if !ok {
			return nil, &ErrBadSearch{Reason: fmt.Sprintf("unknown dimension %q", name)}
		}
		if _, dup := equality[name]; dup {
			return nil, &ErrBadSearch{Reason: fmt.Sprintf("dimension %q constrained by both equality and range", name)}
		}
		p.Ranges[idx] = r
	}

	return p, nil
}

// Encode serializes a predicate for inclusion in a REQ_SEARCH_START
// payload: equality count, then (index u32be, value) pairs, then range
// count, then (index u32be, low u64be, high u64be) triples.
func (p *Predicate) Encode() []byte {
	var buf []byte
	buf = appendU32(buf, uint32(len(p.Equality)))
	for idx, val := range p.Equality {
		buf = appendU32(buf, uint32(idx))
		buf = wire.PutBytes(buf, val)
	}
	buf = appendU32(buf, uint32(len(p.Ranges)))
	for idx, r := range p.Ranges {
		buf = appendU32(buf, uint32(idx))
		buf = appendU64(buf, r.Low)
		buf = appendU64(buf, r.High)
	}
	return buf
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU64(dst []byte, v uint64) []byte {
	return append(dst,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
