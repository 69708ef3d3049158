package vtex

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vtex/internal/mip"
)

// Page layout constants.
const (
	// PageSize is the side of a page in texels, borders included.
	PageSize = mip.PageSize

	// PageBorderSize is the border width on each page edge, in texels.
	PageBorderSize = mip.PageBorderSize

	// PageStride is the number of texels per page side not shared with a neighbour.
	PageStride = mip.PageStride

	// MaxMipLevels is the largest supported mip level count.
	MaxMipLevels = 12

	// MaxSideLen is the largest supported page-grid side length.
	MaxSideLen = 1 << MaxMipLevels

	// SupportedBytesPerTexel is the only texel size handled (RGBA8).
	SupportedBytesPerTexel = 4
)

// RowTexelWidth returns the width in texels of a packed row holding pages
// pages: the useful texels of every page plus one border on each side.
func RowTexelWidth(pages int) int {
	return pages*PageStride + 2*PageBorderSize
}

// TextureMetadata describes the shape of a virtual texture.
//
// SideLen is the number of pages per side at mip 0 and is always a power of
// two. MipLevels equals log2(SideLen), so the coarsest level is one page.
// TextureMetadata is immutable once constructed.
type TextureMetadata struct {
	SideLen       uint16
	BytesPerTexel uint8
	MipLevels     uint8
}

// MetadataFromDimensions creates metadata from a page-grid side length hint.
// The hint is rounded up to the next power of two.
func MetadataFromDimensions(sideLenHint uint16, bytesPerTexel uint8) (TextureMetadata, error) {
	if sideLenHint == 0 {
		return TextureMetadata{}, ErrInvalidSideLength
	}
	if bytesPerTexel != SupportedBytesPerTexel {
		return TextureMetadata{}, ErrUnsupportedTexelSize
	}
	mips := bits.Len16(sideLenHint - 1)
	if mips > MaxMipLevels {
		return TextureMetadata{}, fmt.Errorf("%w: %d pages rounds up to %d", ErrTextureTooLarge, sideLenHint, 1<<mips)
	}
	return TextureMetadata{
		SideLen:       1 << mips,
		BytesPerTexel: bytesPerTexel,
		MipLevels:     uint8(mips),
	}, nil
}

// MetadataFromMip creates metadata for a square texture with 2^mipLevels
// pages per side.
func MetadataFromMip(mipLevels, bytesPerTexel uint8) (TextureMetadata, error) {
	if mipLevels > MaxMipLevels {
		return TextureMetadata{}, fmt.Errorf("%w: %d mip levels", ErrTextureTooLarge, mipLevels)
	}
	if bytesPerTexel != SupportedBytesPerTexel {
		return TextureMetadata{}, ErrUnsupportedTexelSize
	}
	return TextureMetadata{
		SideLen:       1 << mipLevels,
		BytesPerTexel: bytesPerTexel,
		MipLevels:     mipLevels,
	}, nil
}

// Validate checks every invariant of m.
func (m TextureMetadata) Validate() error {
	switch {
	case m.SideLen == 0:
		return ErrInvalidSideLength
	case m.SideLen > MaxSideLen:
		return ErrTextureTooLarge
	case m.SideLen&(m.SideLen-1) != 0:
		return fmt.Errorf("vtex: side length %d is not a power of two", m.SideLen)
	case m.BytesPerTexel != SupportedBytesPerTexel:
		return ErrUnsupportedTexelSize
	case int(m.MipLevels) != bits.TrailingZeros16(m.SideLen):
		return fmt.Errorf("vtex: %d mip levels do not match side length %d", m.MipLevels, m.SideLen)
	}
	return nil
}

// PagesAt returns the number of pages per side at the given mip level.
func (m TextureMetadata) PagesAt(level uint8) int {
	if level > m.MipLevels {
		return 0
	}
	return int(m.SideLen >> level)
}

// PageBytes returns the size in bytes of a single page.
func (m TextureMetadata) PageBytes() int {
	return PageSize * PageSize * int(m.BytesPerTexel)
}

// RowBytes returns the size of a packed row buffer at the given mip level,
// as produced by the importer and the mip generator.
func (m TextureMetadata) RowBytes(level uint8) int {
	return RowTexelWidth(m.PagesAt(level)) * PageSize * int(m.BytesPerTexel)
}

// RowFileSize returns the size of a row file at the given mip level.
func (m TextureMetadata) RowFileSize(level uint8) int64 {
	return int64(m.PagesAt(level)) * int64(m.PageBytes())
}

// SourceTexelWidth returns the width and height in texels of the source
// image expected by ImportTexture.
func (m TextureMetadata) SourceTexelWidth() int {
	return RowTexelWidth(int(m.SideLen))
}

// SourceSize returns the size in bytes of the source image expected by ImportTexture.
func (m TextureMetadata) SourceSize() int64 {
	w := int64(m.SourceTexelWidth())
	return w * w * int64(m.BytesPerTexel)
}

// Format returns the GPU texture format of the pages.
func (m TextureMetadata) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// TexelExtent returns the addressable extent of the texture at a mip level:
// PageStride unique texels per page, shared borders excluded. Use it for the
// page table and UV mapping. It is not an allocation size: a packed row file
// spans RowTexelWidth texels, and an atlas allocates slots of PageExtent.
func (m TextureMetadata) TexelExtent(level uint8) gputypes.Extent3D {
	side := uint32(m.PagesAt(level)) * PageStride
	return gputypes.Extent3D{Width: side, Height: side, DepthOrArrayLayers: 1}
}

// PageExtent returns the extent of one page as uploaded into a physical atlas.
func PageExtent() gputypes.Extent3D {
	return gputypes.Extent3D{Width: PageSize, Height: PageSize, DepthOrArrayLayers: 1}
}

// metadataJSON is the sidecar representation. Dimensions is the legacy
// two-sided form, read but never written.
type metadataJSON struct {
	SideLen       uint16    `json:"side_len,omitempty"`
	Dimensions    *[2]int64 `json:"dimensions,omitempty"`
	BytesPerTexel uint8     `json:"bytes_per_texel"`
	MipLevels     uint8     `json:"mip_levels"`
}

// MarshalJSON writes the sidecar form of m.
func (m TextureMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataJSON{
		SideLen:       m.SideLen,
		BytesPerTexel: m.BytesPerTexel,
		MipLevels:     m.MipLevels,
	})
}

// UnmarshalJSON reads either sidecar form and validates the result.
func (m *TextureMetadata) UnmarshalJSON(data []byte) error {
	var raw metadataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side := raw.SideLen
	if raw.Dimensions != nil {
		w, h := raw.Dimensions[0], raw.Dimensions[1]
		if w != h {
			return fmt.Errorf("vtex: non-square dimensions %dx%d", w, h)
		}
		if w <= 0 || w > MaxSideLen {
			return fmt.Errorf("vtex: dimensions %d out of range", w)
		}
		if side != 0 && int64(side) != w {
			return errors.New("vtex: side_len and dimensions disagree")
		}
		side = uint16(w)
	}
	out := TextureMetadata{
		SideLen:       side,
		BytesPerTexel: raw.BytesPerTexel,
		MipLevels:     raw.MipLevels,
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*m = out
	return nil
}
