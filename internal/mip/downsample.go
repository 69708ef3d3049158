package mip

import (
	"image"

	"golang.org/x/image/draw"
)

// Page layout shared with the storage layer.
const (
	// PageSize is the side of a page in texels, borders included.
	PageSize = 128

	// PageBorderSize is the border width on each page edge, in texels.
	PageBorderSize = 4

	// PageStride is the number of texels per page side not shared with a neighbour.
	PageStride = PageSize - 2*PageBorderSize

	// bytesPerTexel is fixed at RGBA8.
	bytesPerTexel = 4
)

// NextRowTexels returns the texel width of the row derived from a pair of
// rows rowTexels wide. Halving n*PageStride + 2*PageBorderSize and adding a
// border back yields (n/2)*PageStride + 2*PageBorderSize; a single page never
// shrinks below PageSize.
func NextRowTexels(rowTexels int) int {
	return max(rowTexels/2+PageBorderSize, PageSize)
}

// downsample resizes a pair of adjacent rows into dst.
//
// The top row without its bottom border and the bottom row without its top
// border are each treated as an image PageSize-PageBorderSize texels tall and
// scaled independently to PageSize/2 texels, so together they fill one row of
// the next mip level. dst must hold NextRowTexels(rowTexels)*PageSize texels.
//
// Texels are straight (non-premultiplied) RGBA. x/image/draw reads
// *image.RGBA as premultiplied and its kernel scalers clamp colour to alpha,
// so every filter except nearest scales colour and alpha as two opaque
// planes and recombines them. Scratch planes come from pool.
func downsample(dst, top, bottom []byte, rowTexels int, f Filter, pool *RowPool) {
	const srcH = PageSize - PageBorderSize
	const dstH = PageSize / 2

	srcStride := rowTexels * bytesPerTexel
	srcRect := image.Rect(0, 0, rowTexels, srcH)
	dstW := NextRowTexels(rowTexels)
	dstStride := dstW * bytesPerTexel
	dstRect := image.Rect(0, 0, dstW, dstH)
	half := dstH * dstStride

	scaler := f.interpolator()
	scale := func(d, s []byte) {
		scaler.Scale(&image.RGBA{Pix: d, Stride: dstStride, Rect: dstRect}, dstRect,
			&image.RGBA{Pix: s, Stride: srcStride, Rect: srcRect}, srcRect, draw.Src, nil)
	}

	halves := [2]struct{ src, dst []byte }{
		{top[:srcH*srcStride], dst[:half]},
		{bottom[PageBorderSize*srcStride:], dst[half : 2*half]},
	}

	// Nearest copies texels unchanged.
	if f == FilterNearest {
		for _, h := range halves {
			scale(h.dst, h.src)
		}
		return
	}

	srcColor, srcAlpha := pool.Get(srcH*srcStride), pool.Get(srcH*srcStride)
	dstColor, dstAlpha := pool.Get(half), pool.Get(half)
	for _, h := range halves {
		splitAlpha(srcColor, srcAlpha, h.src)
		scale(dstColor, srcColor)
		scale(dstAlpha, srcAlpha)
		joinAlpha(h.dst, dstColor, dstAlpha)
	}
	pool.Put(srcColor)
	pool.Put(srcAlpha)
	pool.Put(dstColor)
	pool.Put(dstAlpha)
}

// splitAlpha writes the colour of src to color and its alpha, replicated in
// the colour channels, to alpha. Both planes are opaque.
func splitAlpha(color, alpha, src []byte) {
	for i := 0; i < len(src); i += bytesPerTexel {
		a := src[i+3]
		color[i], color[i+1], color[i+2], color[i+3] = src[i], src[i+1], src[i+2], 0xFF
		alpha[i], alpha[i+1], alpha[i+2], alpha[i+3] = a, a, a, 0xFF
	}
}

// joinAlpha recombines planes produced by splitAlpha into dst.
func joinAlpha(dst, color, alpha []byte) {
	for i := 0; i < len(dst); i += bytesPerTexel {
		dst[i], dst[i+1], dst[i+2], dst[i+3] = color[i], color[i+1], color[i+2], alpha[i]
	}
}
