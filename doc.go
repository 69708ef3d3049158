// Package vtex implements the data plane of a virtual-texturing engine.
//
// # Overview
//
// A virtual texture is stored on disk as a grid of fixed-size pages, one
// file per page-row and mip level. The texture is imported from a raw
// RGBA8 byte stream two page-rows at a time, and every coarser mip level is
// derived on the fly while the stream is read, so memory use does not
// depend on the size of the source image.
//
// # Quick Start
//
//	meta, err := vtex.MetadataFromMip(4, 4) // 16x16 pages, RGBA8
//	if err != nil {
//	    return err
//	}
//	storage, err := vtex.Create("texture", meta)
//	if err != nil {
//	    return err
//	}
//	err = storage.ImportTexture(ctx, vtex.FilterBilinear, bufio.NewReader(f))
//
// # Page Layout
//
// A page is [PageSize] texels on each side and carries a [PageBorderSize]
// texel border copied from its neighbours, so [PageStride] texels of every
// page are unique. A source image for a texture with N pages per side is
// N*PageStride + 2*PageBorderSize texels wide and high.
//
// On disk a texture directory holds:
//   - {name}.json: the metadata sidecar
//   - {mip}-{row}: one binary file per page-row, pages stored one after
//     another, each page row-major
//
// # Streaming
//
// The feedback sub-package turns a GPU feedback readback into the sorted,
// deduplicated set of pages needed for the current frame and hands it to a
// page sink that can read the pages back through [TextureStorage.ReadPage].
//
// # Concurrency
//
// TextureStorage performs plain blocking file I/O and does no locking.
// Callers must serialize all access to one storage directory.
package vtex

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"
)
