// Package mip derives the coarser mip levels of a virtual texture from
// pairs of finer page-rows.
package mip

import (
	"fmt"
	"strings"

	"golang.org/x/image/draw"
)

// Filter defines how a page-row is resampled to the next mip level.
type Filter uint8

const (
	// FilterNearest selects the closest texel (no interpolation).
	// Fast, blocky when the source has detail.
	FilterNearest Filter = iota

	// FilterApproxBilinear is a fast approximation of bilinear filtering.
	FilterApproxBilinear

	// FilterBilinear weights texels with a tent kernel.
	// Good balance between quality and speed.
	FilterBilinear

	// FilterCatmullRom uses the Catmull-Rom cubic kernel.
	// Highest quality, slowest.
	FilterCatmullRom
)

// String returns a string representation of the filter.
func (f Filter) String() string {
	switch f {
	case FilterNearest:
		return "nearest"
	case FilterApproxBilinear:
		return "approx-bilinear"
	case FilterBilinear:
		return "bilinear"
	case FilterCatmullRom:
		return "catmull-rom"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// IsValid reports whether f is a known filter.
func (f Filter) IsValid() bool {
	return f <= FilterCatmullRom
}

// ParseFilter returns the filter named s, case-insensitively.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return FilterNearest, nil
	case "approx-bilinear", "approxbilinear":
		return FilterApproxBilinear, nil
	case "bilinear", "linear", "triangle":
		return FilterBilinear, nil
	case "catmull-rom", "catmullrom", "cubic":
		return FilterCatmullRom, nil
	default:
		return 0, fmt.Errorf("mip: unknown filter %q", s)
	}
}

// interpolator returns the x/image scaler for f.
func (f Filter) interpolator() draw.Interpolator {
	switch f {
	case FilterApproxBilinear:
		return draw.ApproxBiLinear
	case FilterBilinear:
		return draw.BiLinear
	case FilterCatmullRom:
		return draw.CatmullRom
	default:
		return draw.NearestNeighbor
	}
}
