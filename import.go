package vtex

import (
	"context"
	"errors"
	"io"

	"github.com/gogpu/vtex/internal/mip"
)

// Filter selects the resampling filter used to derive coarser mip levels.
type Filter = mip.Filter

// Resampling filters.
const (
	FilterNearest        = mip.FilterNearest
	FilterApproxBilinear = mip.FilterApproxBilinear
	FilterBilinear       = mip.FilterBilinear
	FilterCatmullRom     = mip.FilterCatmullRom
)

// ParseFilter returns the filter with the given name
// ("nearest", "approx-bilinear", "bilinear", "catmull-rom").
func ParseFilter(name string) (Filter, error) {
	return mip.ParseFilter(name)
}

// ImportBufferSize returns the size in bytes of the sliding window used by
// ImportTexture: one border plus two page-rows of the source image. It is the
// largest buffer the importer allocates for level 0, whatever the image height.
func (m TextureMetadata) ImportBufferSize() int {
	if m.SideLen == 1 {
		return PageSize * m.SourceTexelWidth() * int(m.BytesPerTexel)
	}
	return (2*PageStride + 2*PageBorderSize) * m.SourceTexelWidth() * int(m.BytesPerTexel)
}

// ImportTexture reads a full-resolution texture from r and writes every mip
// level of it.
//
// r must yield SourceSize() bytes of raw row-major texels, SourceTexelWidth()
// texels per side. The stream is consumed two page-rows at a time through a
// window of ImportBufferSize() bytes: the shared border is read first, then
// for each pair of page-rows the next 2*PageStride texel rows are read, the
// pair is written at mip 0 and cascaded into coarser levels, and only then is
// the trailing border moved to the front of the window for the next pair.
//
// ctx is checked between pairs. A stream that ends early yields an I/O error
// wrapping io.ErrUnexpectedEOF.
func (s *TextureStorage) ImportTexture(ctx context.Context, filter Filter, r io.Reader) error {
	meta := s.meta
	chain, err := mip.NewChain(0, meta.MipLevels, meta.BytesPerTexel, filter)
	if err != nil {
		return preconditionError("import", err)
	}

	log := Logger()
	log.Info("vtex: import started",
		"dir", s.dir, "side_len", meta.SideLen, "filter", filter.String(), "source_bytes", meta.SourceSize())

	texelRowBytes := meta.SourceTexelWidth() * int(meta.BytesPerTexel)
	buf := make([]byte, meta.ImportBufferSize())

	// A single page has no pair to form: read it whole.
	if meta.SideLen == 1 {
		if err := readFull(r, buf); err != nil {
			return err
		}
		if err := chain.WriteRow(0, buf, 0, s); err != nil {
			return wrapChainError("import", err)
		}
		log.Info("vtex: import finished", "dir", s.dir, "rows", 1, "levels", chain.Levels())
		return nil
	}

	borderBytes := 2 * PageBorderSize * texelRowBytes
	pageRowBytes := PageSize * texelRowBytes

	if err := readFull(r, buf[:borderBytes]); err != nil {
		return err
	}

	pairs := int(meta.SideLen) / 2
	for pair := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := readFull(r, buf[borderBytes:]); err != nil {
			return err
		}

		top := buf[:pageRowBytes]
		bottom := buf[len(buf)-pageRowBytes:]
		if err := chain.WriteTwoRows(top, bottom, 2*pair, s); err != nil {
			return wrapChainError("import", err)
		}

		// The bottom border of this pair is the top border of the next.
		copy(buf, buf[len(buf)-borderBytes:])
	}

	log.Info("vtex: import finished", "dir", s.dir, "rows", int(meta.SideLen), "levels", chain.Levels())
	return nil
}

func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return ioError("import", "", err)
	}
	return nil
}
