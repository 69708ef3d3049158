// Package mmap provides read-only memory-mapped access to page-row files.
package mmap

import "errors"

// ErrClosed is returned when using a mapping after Close.
var ErrClosed = errors.New("mmap: mapping is closed")

// Size returns the current mapped size.
func (m *Map) Size() int64 {
	return int64(len(m.data))
}

// Data returns the underlying byte slice.
// Do not keep references to this slice after Close is called.
func (m *Map) Data() []byte {
	return m.data
}

// Slice returns length bytes of the mapped memory starting at offset.
// Returns nil if the range is invalid or the mapping is closed.
func (m *Map) Slice(offset, length int64) []byte {
	if m.data == nil {
		return nil
	}
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil
	}
	return m.data[offset : offset+length]
}
