package mip

import (
	"errors"
	"fmt"
)

// Chain errors. All of them mean the caller broke the row protocol.
var (
	// ErrMisalignedRow is returned when a row arrives at an index that cannot
	// start or complete a pair.
	ErrMisalignedRow = errors.New("mip: misaligned row index")

	// ErrRowPending is returned by WriteTwoRows while the finest level still
	// buffers the first row of a pair.
	ErrRowPending = errors.New("mip: level already holds a pending row")

	// ErrRowSize is returned when a row is not a whole number of page-rows or
	// the rows of a pair differ in size.
	ErrRowSize = errors.New("mip: invalid row size")

	// ErrLevelOutOfRange is returned for a mip level outside the chain.
	ErrLevelOutOfRange = errors.New("mip: level out of range")

	// ErrInvalidChain is returned by NewChain for inconsistent parameters.
	ErrInvalidChain = errors.New("mip: invalid chain parameters")
)

// RowWriter persists one packed page-row of a mip level.
type RowWriter interface {
	WriteRow(mip uint8, row uint16, data []byte) error
}

// level is the generator state of one mip level. It holds at most one row:
// the even row of a pair waiting for its partner.
type level struct {
	row     []byte
	index   int
	owned   bool // row came from the pool
	pending bool
}

// Chain generates every mip level from finest down to coarsest.
//
// Rows written at a level are persisted immediately. Each pair of rows
// (2i, 2i+1) is downsampled into row i of the next level, which in turn is
// persisted and paired, until the coarsest level is reached. At most one row
// per level is buffered, so memory does not depend on the texture height.
//
// A Chain is not safe for concurrent use.
type Chain struct {
	finest   uint8
	coarsest uint8
	filter   Filter
	levels   []level
	pool     *RowPool
}

// NewChain creates a chain for levels finest..coarsest.
func NewChain(finest, coarsest, texelBytes uint8, filter Filter) (*Chain, error) {
	if finest > coarsest {
		return nil, fmt.Errorf("%w: finest level %d above coarsest %d", ErrInvalidChain, finest, coarsest)
	}
	if texelBytes != bytesPerTexel {
		return nil, fmt.Errorf("%w: %d bytes per texel", ErrInvalidChain, texelBytes)
	}
	if !filter.IsValid() {
		return nil, fmt.Errorf("%w: filter %v", ErrInvalidChain, filter)
	}
	return &Chain{
		finest:   finest,
		coarsest: coarsest,
		filter:   filter,
		levels:   make([]level, int(coarsest-finest)+1),
		pool:     NewPool(2),
	}, nil
}

// Levels returns the number of mip levels handled by c.
func (c *Chain) Levels() int {
	return len(c.levels)
}

// Pending returns the number of levels currently buffering a row.
func (c *Chain) Pending() int {
	n := 0
	for i := range c.levels {
		if c.levels[i].pending {
			n++
		}
	}
	return n
}

// WriteRow writes row number index of mip level mipLevel.
//
// The row is persisted at once. An even row is then buffered until its odd
// partner arrives; the pair is then downsampled into the next level. c keeps
// a reference to row while it is buffered, so the caller must not modify it
// until the pair is complete.
func (c *Chain) WriteRow(mipLevel uint8, row []byte, index int, w RowWriter) error {
	if mipLevel < c.finest || mipLevel > c.coarsest {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrLevelOutOfRange, mipLevel, c.finest, c.coarsest)
	}
	return c.push(int(mipLevel-c.finest), row, index, false, w)
}

// WriteTwoRows writes rows firstIndex and firstIndex+1 of the finest level
// and cascades into the coarser levels. Neither row is retained.
func (c *Chain) WriteTwoRows(top, bottom []byte, firstIndex int, w RowWriter) error {
	if firstIndex%2 != 0 {
		return fmt.Errorf("%w: pair starts at odd row %d", ErrMisalignedRow, firstIndex)
	}
	if c.levels[0].pending {
		return fmt.Errorf("%w: level %d row %d", ErrRowPending, c.finest, c.levels[0].index)
	}
	if err := w.WriteRow(c.finest, uint16(firstIndex), top); err != nil {
		return err
	}
	if err := w.WriteRow(c.finest, uint16(firstIndex+1), bottom); err != nil {
		return err
	}
	next, err := c.mipTwoRows(0, top, bottom)
	if err != nil || next == nil {
		return err
	}
	return c.push(1, next, firstIndex/2, true, w)
}

// push persists row at level i and either buffers it or pairs it with the
// buffered row, walking down the chain for as long as pairs complete.
func (c *Chain) push(i int, row []byte, index int, owned bool, w RowWriter) error {
	for {
		if err := w.WriteRow(c.finest+uint8(i), uint16(index), row); err != nil {
			c.release(row, owned)
			return err
		}

		// Nothing below the coarsest level consumes its rows.
		if i == len(c.levels)-1 {
			c.release(row, owned)
			return nil
		}

		st := &c.levels[i]
		if !st.pending {
			if index%2 != 0 {
				c.release(row, owned)
				return fmt.Errorf("%w: level %d row %d has no partner", ErrMisalignedRow, c.finest+uint8(i), index)
			}
			*st = level{row: row, index: index, owned: owned, pending: true}
			return nil
		}
		if index != st.index+1 {
			c.release(row, owned)
			return fmt.Errorf("%w: level %d row %d cannot follow row %d", ErrMisalignedRow, c.finest+uint8(i), index, st.index)
		}

		top, topOwned, first := st.row, st.owned, st.index
		*st = level{}

		next, err := c.mipTwoRows(i, top, row)
		c.release(top, topOwned)
		c.release(row, owned)
		if err != nil || next == nil {
			return err
		}
		i, row, index, owned = i+1, next, first/2, true
	}
}

// mipTwoRows downsamples a pair of rows of level i into a row of level i+1.
// It returns nil at the coarsest level.
func (c *Chain) mipTwoRows(i int, top, bottom []byte) ([]byte, error) {
	if i >= len(c.levels)-1 {
		return nil, nil
	}
	const pageRowBytes = PageSize * bytesPerTexel
	if len(top) != len(bottom) || len(top) == 0 || len(top)%pageRowBytes != 0 {
		return nil, fmt.Errorf("%w: rows of %d and %d bytes", ErrRowSize, len(top), len(bottom))
	}
	rowTexels := len(top) / pageRowBytes
	if rowTexels < PageSize {
		return nil, fmt.Errorf("%w: %d texels wide", ErrRowSize, rowTexels)
	}

	dst := c.pool.Get(NextRowTexels(rowTexels) * pageRowBytes)
	downsample(dst, top, bottom, rowTexels, c.filter, c.pool)
	return dst, nil
}

func (c *Chain) release(row []byte, owned bool) {
	if owned {
		c.pool.Put(row)
	}
}
