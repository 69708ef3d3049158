package vtex

import (
	"errors"
	"fmt"
)

// Metadata and layout errors.
var (
	// ErrInvalidSideLength is returned when a page-grid side length is zero.
	ErrInvalidSideLength = errors.New("vtex: side length must be positive")

	// ErrTextureTooLarge is returned when a texture exceeds MaxSideLen pages per side.
	ErrTextureTooLarge = errors.New("vtex: texture exceeds maximum side length")

	// ErrUnsupportedTexelSize is returned for any bytes-per-texel other than 4.
	ErrUnsupportedTexelSize = errors.New("vtex: only 4 bytes per texel (RGBA8) is supported")

	// ErrPageCountMismatch is returned when a row buffer does not hold
	// exactly the number of pages of its mip level.
	ErrPageCountMismatch = errors.New("vtex: row buffer page count does not match mip level")

	// ErrRowOutOfRange is returned when a mip level or row index lies outside the texture.
	ErrRowOutOfRange = errors.New("vtex: row out of range")

	// ErrPageOutOfRange is returned when a page column lies outside its row.
	ErrPageOutOfRange = errors.New("vtex: page out of range")

	// ErrDeserialization is returned when the metadata sidecar exists but
	// cannot be parsed. This should only happen if the file was edited by hand.
	ErrDeserialization = errors.New("vtex: could not parse metadata file")
)

// ErrorKind classifies a StorageError.
type ErrorKind uint8

const (
	// KindIO wraps a failed directory or file operation.
	KindIO ErrorKind = iota + 1

	// KindDeserialization means the metadata sidecar is present but unusable.
	KindDeserialization

	// KindPrecondition means the caller violated an API contract.
	KindPrecondition
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDeserialization:
		return "deserialization"
	case KindPrecondition:
		return "precondition"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// StorageError records a failed storage operation.
type StorageError struct {
	Kind ErrorKind
	Op   string // "create", "open", "write row", "import", "read page"
	Path string // file or directory involved, may be empty
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("vtex: %s: %s error: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("vtex: %s %s: %s error: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func ioError(op, path string, err error) error {
	return &StorageError{Kind: KindIO, Op: op, Path: path, Err: err}
}

func decodeError(op, path string, err error) error {
	return &StorageError{Kind: KindDeserialization, Op: op, Path: path, Err: fmt.Errorf("%w: %w", ErrDeserialization, err)}
}

func preconditionError(op string, err error) error {
	return &StorageError{Kind: KindPrecondition, Op: op, Err: err}
}

// IsIO reports whether err is an I/O failure from a storage operation.
func IsIO(err error) bool {
	return kindOf(err) == KindIO
}

// IsDeserialization reports whether err comes from an unparsable metadata sidecar.
func IsDeserialization(err error) bool {
	return kindOf(err) == KindDeserialization
}

func kindOf(err error) ErrorKind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
