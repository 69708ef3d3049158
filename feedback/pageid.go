// Package feedback turns GPU feedback readbacks into the set of virtual
// texture pages required by the current frame.
//
// Every texel of the feedback texture holds a 4-byte packed PageID naming
// the page the rendered pixel sampled. Reduce decodes a whole readback,
// sorts it coarsest mip first and drops duplicates. A Streamer runs that
// reduction on a dedicated goroutine each time the render loop signals that
// a readback buffer is mapped, and hands the result to a PageSink.
package feedback

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
)

// Page identifier layout.
const (
	// EncodedSize is the size of a packed PageID in bytes.
	EncodedSize = 4

	// CoordBits is the width of the X and Y fields.
	CoordBits = 14

	// MipBits is the width of the mip level field.
	MipBits = 4

	// MaxCoord is the largest encodable page coordinate.
	MaxCoord = 1<<CoordBits - 1

	// MaxMip is the largest encodable mip level.
	MaxMip = 1<<MipBits - 1
)

// ErrInvalidPageID is returned by NewPageID when a field exceeds its bit width.
var ErrInvalidPageID = errors.New("feedback: page id field out of range")

// PageID addresses one page of a virtual texture.
//
// The packed form is a big-endian 32-bit word:
//
//	bits 31..18  X   (byte0 = X[13:6], byte1[7:2] = X[5:0])
//	bits 17..4   Y   (byte1[1:0] = Y[13:12], byte2 = Y[11:4], byte3[7:4] = Y[3:0])
//	bits  3..0   Mip (byte3[3:0])
type PageID struct {
	X   uint16
	Y   uint16
	Mip uint8
}

// NewPageID returns the page id (x, y, mip) after checking each field fits
// its bit width.
func NewPageID(x, y uint16, mip uint8) (PageID, error) {
	id := PageID{X: x, Y: y, Mip: mip}
	if !id.Valid() {
		return PageID{}, fmt.Errorf("%w: %v", ErrInvalidPageID, id)
	}
	return id, nil
}

// DecodePageID decodes the first EncodedSize bytes of b.
// It panics if b is shorter than EncodedSize.
func DecodePageID(b []byte) PageID {
	w := binary.BigEndian.Uint32(b)
	return PageID{
		X:   uint16(w >> 18),
		Y:   uint16(w>>4) & MaxCoord,
		Mip: uint8(w) & MaxMip,
	}
}

// Valid reports whether every field of id fits its bit width.
func (id PageID) Valid() bool {
	return id.X <= MaxCoord && id.Y <= MaxCoord && id.Mip <= MaxMip
}

// Encode returns the packed form of id. Fields wider than their bit width
// are truncated.
func (id PageID) Encode() [EncodedSize]byte {
	var b [EncodedSize]byte
	binary.BigEndian.PutUint32(b[:], id.word())
	return b
}

// AppendBytes appends the packed form of id to b.
func (id PageID) AppendBytes(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, id.word())
}

func (id PageID) word() uint32 {
	return uint32(id.X&MaxCoord)<<18 | uint32(id.Y&MaxCoord)<<4 | uint32(id.Mip&MaxMip)
}

// String returns a human-readable form of the id.
func (id PageID) String() string {
	return fmt.Sprintf("mip %d (%d, %d)", id.Mip, id.X, id.Y)
}

// Compare orders page ids by mip level, then Y, then X, ascending.
// It returns -1, 0 or +1.
func Compare(a, b PageID) int {
	if c := cmp.Compare(a.Mip, b.Mip); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}

// Less reports whether id sorts before other.
func (id PageID) Less(other PageID) bool {
	return Compare(id, other) < 0
}
