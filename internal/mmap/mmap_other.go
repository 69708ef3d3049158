//go:build !unix

package mmap

import (
	"fmt"
	"os"
)

// Map holds a file read into memory on platforms without unix mmap.
type Map struct {
	data []byte
}

// Open reads the whole file at path.
func Open(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return &Map{data: data}, nil
}

// Close releases the buffer. Calling Close more than once returns ErrClosed.
func (m *Map) Close() error {
	if m.data == nil {
		return ErrClosed
	}
	m.data = nil
	return nil
}
