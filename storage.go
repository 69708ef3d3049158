package vtex

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gogpu/vtex/internal/mmap"
)

// DefaultMetadataFile is the metadata sidecar name used when none is configured.
// The sidecar is stored as {name}.json.
const DefaultMetadataFile = "meta"

// Option configures a TextureStorage during Create or Open.
type Option func(*storageOptions)

// storageOptions holds optional configuration for TextureStorage.
type storageOptions struct {
	metadataFile string
}

func defaultStorageOptions() storageOptions {
	return storageOptions{metadataFile: DefaultMetadataFile}
}

// WithMetadataFile sets the sidecar base name (without the .json extension).
func WithMetadataFile(name string) Option {
	return func(o *storageOptions) {
		if name != "" {
			o.metadataFile = name
		}
	}
}

// TextureStorage owns a directory holding one virtual texture.
//
// It persists the metadata sidecar and one binary file per page-row and mip
// level. TextureStorage does no locking: a single writer is assumed and
// callers must serialize access.
type TextureStorage struct {
	dir      string
	metaFile string
	meta     TextureMetadata
}

// Create creates dir (recursively) if absent and writes the metadata sidecar.
//
// Directory creation and the metadata write are not atomic: a failed write
// can leave an empty directory behind.
func Create(dir string, meta TextureMetadata, opts ...Option) (*TextureStorage, error) {
	if err := meta.Validate(); err != nil {
		return nil, preconditionError("create", err)
	}
	o := defaultStorageOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioError("create", dir, err)
	}

	s := &TextureStorage{dir: dir, metaFile: o.metadataFile, meta: meta}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, ioError("create", s.MetadataPath(), err)
	}
	if err := os.WriteFile(s.MetadataPath(), data, 0o644); err != nil {
		return nil, ioError("create", s.MetadataPath(), err)
	}

	Logger().Info("vtex: texture storage created",
		"dir", dir, "side_len", meta.SideLen, "mip_levels", meta.MipLevels)
	return s, nil
}

// Open loads an existing texture from dir.
func Open(dir string, opts ...Option) (*TextureStorage, error) {
	o := defaultStorageOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &TextureStorage{dir: dir, metaFile: o.metadataFile}
	data, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		return nil, ioError("open", s.MetadataPath(), err)
	}
	if err := json.Unmarshal(data, &s.meta); err != nil {
		return nil, decodeError("open", s.MetadataPath(), err)
	}
	return s, nil
}

// Dir returns the texture directory.
func (s *TextureStorage) Dir() string { return s.dir }

// Metadata returns the texture metadata.
func (s *TextureStorage) Metadata() TextureMetadata { return s.meta }

// MetadataPath returns the path of the metadata sidecar.
func (s *TextureStorage) MetadataPath() string {
	return filepath.Join(s.dir, s.metaFile+".json")
}

// RowPath returns the path of the file holding a page-row.
func (s *TextureStorage) RowPath(level uint8, row uint16) string {
	return filepath.Join(s.dir, strconv.Itoa(int(level))+"-"+strconv.Itoa(int(row)))
}

// HasRow reports whether the file for a page-row exists.
func (s *TextureStorage) HasRow(level uint8, row uint16) bool {
	info, err := os.Stat(s.RowPath(level, row))
	return err == nil && info.Mode().IsRegular()
}

// WriteRow persists one packed page-row.
//
// data is a row-major image RowTexelWidth(n) texels wide and PageSize texels
// tall, where n = SideLen >> level; page p covers texel columns
// [p*PageStride, p*PageStride+PageSize). Each page is cut out and written
// contiguously to the file {level}-{row}, which is created or truncated.
// A buffer holding any other number of pages returns ErrPageCountMismatch.
func (s *TextureStorage) WriteRow(level uint8, row uint16, data []byte) error {
	if err := s.checkRow(level, row); err != nil {
		return preconditionError("write row", err)
	}
	if len(data) != s.meta.RowBytes(level) {
		return preconditionError("write row", fmt.Errorf("%w: level %d wants %d pages, buffer holds %s",
			ErrPageCountMismatch, level, s.meta.PagesAt(level), s.impliedPages(len(data))))
	}

	path := s.RowPath(level, row)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ioError("write row", path, err)
	}

	bpt := int(s.meta.BytesPerTexel)
	rowStride := len(data) / PageSize
	pageRowBytes := PageSize * bpt
	w := bufio.NewWriterSize(f, s.meta.PageBytes())
	for page := range s.meta.PagesAt(level) {
		column := page * PageStride * bpt
		for y := range PageSize {
			start := y*rowStride + column
			if _, err := w.Write(data[start : start+pageRowBytes]); err != nil {
				_ = f.Close()
				return ioError("write row", path, err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return ioError("write row", path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("write row", path, err)
	}

	Logger().Debug("vtex: wrote row", "mip", level, "row", row)
	return nil
}

// impliedPages describes how many pages a buffer of n bytes would hold.
func (s *TextureStorage) impliedPages(n int) string {
	pageRowBytes := PageSize * int(s.meta.BytesPerTexel)
	if n%pageRowBytes != 0 {
		return fmt.Sprintf("%d bytes (not a whole number of texel rows)", n)
	}
	texels := n/pageRowBytes - 2*PageBorderSize
	if texels <= 0 || texels%PageStride != 0 {
		return fmt.Sprintf("%d texels (not a whole number of pages)", n/pageRowBytes)
	}
	return strconv.Itoa(texels / PageStride)
}

func (s *TextureStorage) checkRow(level uint8, row uint16) error {
	if level > s.meta.MipLevels {
		return fmt.Errorf("%w: mip %d, texture has %d levels", ErrRowOutOfRange, level, s.meta.MipLevels)
	}
	if int(row) >= s.meta.PagesAt(level) {
		return fmt.Errorf("%w: row %d, mip %d has %d rows", ErrRowOutOfRange, row, level, s.meta.PagesAt(level))
	}
	return nil
}

// RowView is a read-only memory mapping of one page-row file.
// It must be closed when no longer needed; slices returned by Page are
// invalid after Close.
type RowView struct {
	m         *mmap.Map
	pages     int
	pageBytes int
}

// OpenRow maps the file of a page-row for reading.
func (s *TextureStorage) OpenRow(level uint8, row uint16) (*RowView, error) {
	if err := s.checkRow(level, row); err != nil {
		return nil, preconditionError("read row", err)
	}
	path := s.RowPath(level, row)
	m, err := mmap.Open(path)
	if err != nil {
		return nil, ioError("read row", path, err)
	}
	if m.Size() != s.meta.RowFileSize(level) {
		_ = m.Close()
		return nil, ioError("read row", path,
			fmt.Errorf("%w: file is %d bytes, want %d", io.ErrUnexpectedEOF, m.Size(), s.meta.RowFileSize(level)))
	}
	return &RowView{m: m, pages: s.meta.PagesAt(level), pageBytes: s.meta.PageBytes()}, nil
}

// Len returns the number of pages in the row.
func (v *RowView) Len() int { return v.pages }

// Page returns the bytes of page i, or nil if i is out of range.
func (v *RowView) Page(i int) []byte {
	if i < 0 || i >= v.pages {
		return nil
	}
	return v.m.Slice(int64(i*v.pageBytes), int64(v.pageBytes))
}

// Close unmaps the row file.
func (v *RowView) Close() error {
	return v.m.Close()
}

// ReadPage returns a copy of the page at column col of a page-row.
func (s *TextureStorage) ReadPage(level uint8, row, col uint16) ([]byte, error) {
	if err := s.checkRow(level, row); err != nil {
		return nil, preconditionError("read page", err)
	}
	if int(col) >= s.meta.PagesAt(level) {
		return nil, preconditionError("read page",
			fmt.Errorf("%w: column %d, mip %d has %d pages per row", ErrPageOutOfRange, col, level, s.meta.PagesAt(level)))
	}

	view, err := s.OpenRow(level, row)
	if err != nil {
		return nil, err
	}
	page := append([]byte(nil), view.Page(int(col))...)
	if err := view.Close(); err != nil {
		return nil, ioError("read page", s.RowPath(level, row), err)
	}
	return page, nil
}

// wrapChainError classifies an error returned through the mip chain: storage
// errors pass through, anything else is a broken row protocol.
func wrapChainError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return preconditionError(op, err)
}
