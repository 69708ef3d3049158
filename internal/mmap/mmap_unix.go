//go:build unix

package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map is a read-only memory-mapped file.
type Map struct {
	data   []byte
	mapped bool
}

// Open maps the whole file at path read-only. The file descriptor is closed
// before Open returns; the mapping stays valid until Close.
func Open(path string) (*Map, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	// Zero-length mappings are rejected by the kernel.
	if info.Size() == 0 {
		return &Map{data: []byte{}}, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap: %w", err)
	}
	return &Map{data: data, mapped: true}, nil
}

// Close unmaps the file. Calling Close more than once returns ErrClosed.
func (m *Map) Close() error {
	if m.data == nil {
		return ErrClosed
	}
	if m.mapped {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("failed to munmap: %w", err)
		}
	}
	m.data = nil
	m.mapped = false
	return nil
}
