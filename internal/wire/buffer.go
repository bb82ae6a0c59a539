package wire

import (
	"encoding/binary"
	"fmt"
)

// PutBytes appends b to dst as a u32be length prefix followed by the
// raw bytes, the encoding used for keys, values, and attribute payloads
// throughout the payload bodies.
func PutBytes(dst []byte, b []byte) []byte {
	var lenbuf [4]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(b)))
	dst = append(dst, lenbuf[:]...)
	return append(dst, b...)
}

// GetBytes reads a length-prefixed byte string from the front of src,
// returning the slice, and the remainder of src after it.
func GetBytes(src []byte) ([]byte, []byte, error) {
	if len(src) < 4 {
		return nil, nil, fmt.Errorf("wire: buffer too short for length prefix")
	}
	n := binary.BigEndian.Uint32(src[:4])
	src = src[4:]
	if uint64(len(src)) < uint64(n) {
		return nil, nil, fmt.Errorf("wire: buffer too short: want %d bytes, have %d", n, len(src))
	}
	return src[:n], src[n:], nil
}

// PutBytesSlice appends a u32be count followed by each element encoded
// with PutBytes, the encoding used for multi-valued attributes.
func PutBytesSlice(dst []byte, vs [][]byte) []byte {
	var countbuf [4]byte
	binary.BigEndian.PutUint32(countbuf[:], uint32(len(vs)))
	dst = append(dst, countbuf[:]...)
	for _, v := range vs {
		dst = PutBytes(dst, v)
	}
	return dst
}

// GetBytesSlice reads a PutBytesSlice-encoded value from the front of
// src, returning the decoded slices and the remainder.
func GetBytesSlice(src []byte) ([][]byte, []byte, error) {
	if len(src) < 4 {
		return nil, nil, fmt.Errorf("wire: buffer too short for count prefix")
	}
	n := binary.BigEndian.Uint32(src[:4])
	src = src[4:]
	out := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		var v []byte
		var err error
		v, src, err = GetBytes(src)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, src, nil
}

// Bitfield is a packed set of boolean flags, one per dimension beyond
// the key, used by update requests to mark which attributes the caller
// actually supplied.
type Bitfield struct {
	bits []byte
	n    int
}

// NewBitfield allocates a bitfield capable of holding n flags, all
// initially clear.
func NewBitfield(n int) *Bitfield {
	return &Bitfield{bits: make([]byte, (n+7)/8), n: n}
}

// Set marks bit i as seen.
func (b *Bitfield) Set(i int) {
	b.bits[i/8] |= 1 << uint(i%8)
}

// IsSet reports whether bit i has been marked seen.
func (b *Bitfield) IsSet(i int) bool {
	return b.bits[i/8]&(1<<uint(i%8)) != 0
}

// Len reports the number of flags the bitfield holds.
func (b *Bitfield) Len() int {
	return b.n
}

// Bytes returns the packed byte representation, ceil(n/8) bytes wide.
func (b *Bitfield) Bytes() []byte {
	return b.bits
}

// PutBitfield appends the packed bytes of b to dst, prefixed with the
// number of flags it represents so the reader can size a matching
// bitfield on decode.
func PutBitfield(dst []byte, b *Bitfield) []byte {
	var nbuf [4]byte
	binary.BigEndian.PutUint32(nbuf[:], uint32(b.n))
	dst = append(dst, nbuf[:]...)
	return append(dst, b.bits...)
}

// GetBitfield reads a PutBitfield-encoded value from the front of src.
func GetBitfield(src []byte) (*Bitfield, []byte, error) {
	if len(src) < 4 {
		return nil, nil, fmt.Errorf("wire: buffer too short for bitfield length")
	}
	n := binary.BigEndian.Uint32(src[:4])
	src = src[4:]
	width := (int(n) + 7) / 8
	if len(src) < width {
		return nil, nil, fmt.Errorf("wire: buffer too short for bitfield: want %d bytes, have %d", width, len(src))
	}
	b := &Bitfield{bits: append([]byte(nil), src[:width]...), n: int(n)}
	return b, src[width:], nil
}
